package chat

import (
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/tools"
)

// Monitor provides hooks to observe a chat turn.
// Implement this interface to trace tool output and generation.
// Hooks run on the turn's goroutine and must not block.
type Monitor interface {
	Start(req Request)
	AfterTools(results []tools.Result)
	Fragment(content string)
	Finish(agent *core.Message, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Request)                 {}
func (n *noopMonitor) AfterTools(_ []tools.Result)     {}
func (n *noopMonitor) Fragment(_ string)               {}
func (n *noopMonitor) Finish(_ *core.Message, _ error) {}
