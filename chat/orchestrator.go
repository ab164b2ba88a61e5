// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/docchat/ai"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/storage"
	"github.com/poiesic/docchat/tools"
	"golang.org/x/sync/errgroup"
)

// eventBuffer is the number of events queued ahead of a slow consumer.
const eventBuffer = 16

// Request is one user turn in a session.
type Request struct {
	SessionID  core.ID
	DocumentID core.ID
	Message    string
	ProviderID string
	ModelName  string
	ToolIDs    []tools.ID // nil selects the tools enabled by default
	TopK       int        // retrieval size, 0 for the tool default
}

// Orchestrator answers user messages about a document with a streamed,
// tool grounded reply and records the exchange in the session.
type Orchestrator struct {
	sessions  storage.SessionRepository
	docs      storage.DocumentRepository
	tools     *tools.Registry
	providers *ai.Registry
	monitor   Monitor
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithMonitor installs hooks that observe every turn.
func WithMonitor(m Monitor) Option {
	return func(o *Orchestrator) error {
		if m == nil {
			m = &noopMonitor{}
		}
		o.monitor = m
		return nil
	}
}

// NewOrchestrator creates a chat orchestrator.
func NewOrchestrator(
	sessions storage.SessionRepository,
	docs storage.DocumentRepository,
	toolRegistry *tools.Registry,
	providers *ai.Registry,
	opts ...Option,
) (*Orchestrator, error) {
	if sessions == nil {
		return nil, ErrSessionRepositoryRequired
	}
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if toolRegistry == nil {
		return nil, ErrToolRegistryRequired
	}
	if providers == nil {
		return nil, ErrProviderRegistryRequired
	}

	o := &Orchestrator{
		sessions:  sessions,
		docs:      docs,
		tools:     toolRegistry,
		providers: providers,
		monitor:   &noopMonitor{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "chat-orchestrator")
	return o, nil
}

// turn is the state resolved before streaming starts.
type turn struct {
	req      Request
	doc      *core.Document
	tools    []tools.Tool
	provider ai.AIProvider
	model    ai.ChatModel
	user     *core.Message
}

// StreamReply validates the request, persists the user message and returns
// a channel of events for the reply.
//
// Errors found before the user message is stored are returned directly and
// nothing is persisted. After that, the channel yields EventUser, then zero
// or more EventFragment, then exactly one of EventDone or EventError, and is
// closed. The agent message is persisted only when generation finishes
// without error and ctx is still live. Cancelling ctx stops generation
// between fragments.
func (o *Orchestrator) StreamReply(ctx context.Context, req Request) (<-chan Event, error) {
	t, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, eventBuffer)
	go o.run(ctx, t, events)
	return events, nil
}

// prepare runs the synchronous checks and stores the user message.
func (o *Orchestrator) prepare(ctx context.Context, req Request) (*turn, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, core.ErrEmptyContent
	}

	session, err := o.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.DocumentID != req.DocumentID {
		return nil, fmt.Errorf("%w: session %d belongs to document %d, not %d",
			core.ErrNotReady, session.ID, session.DocumentID, req.DocumentID)
	}
	doc, err := o.docs.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if !doc.Queryable() {
		return nil, fmt.Errorf("%w: document %d is %s", core.ErrNotReady, doc.ID, doc.Status)
	}

	selected, err := o.tools.Resolve(req.ToolIDs)
	if err != nil {
		return nil, err
	}
	provider, model, err := o.providers.Resolve(req.ProviderID, req.ModelName)
	if err != nil {
		return nil, err
	}

	toolIDs := make([]string, len(selected))
	for i, id := range tools.IDs(selected) {
		toolIDs[i] = string(id)
	}
	user, err := o.sessions.AppendMessage(ctx, &core.Message{
		SessionID:  req.SessionID,
		Role:       core.RoleUser,
		Content:    req.Message,
		ProviderID: provider.ID(),
		ModelName:  model.Name(),
		ToolIDs:    toolIDs,
	})
	if err != nil {
		return nil, err
	}

	return &turn{
		req:      req,
		doc:      doc,
		tools:    selected,
		provider: provider,
		model:    model,
		user:     user,
	}, nil
}

// run produces the events of one turn and closes events when done.
func (o *Orchestrator) run(ctx context.Context, t *turn, events chan<- Event) {
	defer close(events)
	logger := o.logger.With("session", t.req.SessionID, "document", t.doc.ID)
	started := time.Now()
	o.monitor.Start(t.req)

	if !send(ctx, events, Event{
		Kind:      EventUser,
		Role:      core.RoleUser,
		Content:   t.user.Content,
		Message:   t.user,
		Timestamp: t.user.Timestamp,
	}) {
		o.abort(ctx, logger, events, ctx.Err())
		return
	}

	agent, err := o.generate(ctx, t, events)
	if err != nil {
		o.abort(ctx, logger, events, err)
		return
	}

	o.monitor.Finish(agent, nil)
	send(ctx, events, Event{
		Kind:      EventDone,
		Role:      core.RoleAgent,
		Content:   agent.Content,
		Message:   agent,
		Timestamp: agent.Timestamp,
	})
	logger.Info("chat turn completed",
		"sequence", agent.Sequence, "model", t.model.Name(), "elapsed", time.Since(started))
}

// generate invokes the tools, streams the model reply and stores it.
func (o *Orchestrator) generate(ctx context.Context, t *turn, events chan<- Event) (*core.Message, error) {
	results, err := o.invokeTools(ctx, t)
	if err != nil {
		return nil, err
	}
	o.monitor.AfterTools(results)

	history, err := o.sessions.ListMessages(ctx, t.req.SessionID)
	if err != nil {
		return nil, err
	}
	// Messages appended by a concurrent turn are not part of this one.
	for len(history) > 0 && history[len(history)-1].Sequence > t.user.Sequence {
		history = history[:len(history)-1]
	}
	messages := buildMessages(t.doc.Summary, history, buildGrounding(results))

	reply, err := t.model.StreamChat(ctx, messages, func(ctx context.Context, fragment string) error {
		o.monitor.Fragment(fragment)
		if !send(ctx, events, Event{
			Kind:      EventFragment,
			Role:      core.RoleAgent,
			Content:   fragment,
			Timestamp: time.Now().UTC(),
		}) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, core.ErrProvider) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", core.ErrProvider, t.model.Name(), err)
	}
	// A cancellation that raced the last fragment still discards the reply.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return o.sessions.AppendMessage(ctx, &core.Message{
		SessionID:  t.req.SessionID,
		Role:       core.RoleAgent,
		Content:    reply,
		ProviderID: t.provider.ID(),
		ModelName:  t.model.Name(),
		ToolIDs:    t.user.ToolIDs,
	})
}

// invokeTools runs the turn's tools concurrently. Results keep registry order.
func (o *Orchestrator) invokeTools(ctx context.Context, t *turn) ([]tools.Result, error) {
	results := make([]tools.Result, len(t.tools))
	tc := tools.Context{
		DocumentID: t.doc.ID,
		Namespace:  core.Namespace(t.doc.ID),
		TopK:       t.req.TopK,
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, tool := range t.tools {
		g.Go(func() error {
			result, err := tool.Invoke(gctx, t.req.Message, tc)
			if err != nil {
				return fmt.Errorf("tool %s: %w", tool.ID(), err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// abort ends a turn without an agent message.
func (o *Orchestrator) abort(ctx context.Context, logger *slog.Logger, events chan<- Event, err error) {
	o.monitor.Finish(nil, err)
	ev := Event{Kind: EventError, Err: err, Timestamp: time.Now().UTC()}

	if ctx.Err() != nil {
		logger.Info("chat turn cancelled", "err", err)
		// The consumer may be gone; never block on it.
		select {
		case events <- ev:
		default:
		}
		return
	}
	logger.Error("chat turn failed", "err", err)
	send(ctx, events, ev)
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
