// Package chat answers questions about an indexed document.
//
// An Orchestrator turn validates the request, stores the user message,
// gathers grounding context from the selected tools and streams the model's
// reply as a channel of events. The agent message is stored only when the
// reply finishes, so an aborted turn never leaves half an answer in the
// session history.
package chat
