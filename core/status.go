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

package core

import (
	"fmt"
	"slices"
)

// DocumentStatus is a document's position in the indexing lifecycle.
// The string values are a stable contract for any client.
type DocumentStatus string

const (
	// StatusCreated means the upload was accepted and the content stored.
	StatusCreated DocumentStatus = "created"
	// StatusProcessing means an indexing run owns the document.
	StatusProcessing DocumentStatus = "processing"
	// StatusProcessed means all chunks are indexed and the summary is pending.
	StatusProcessed DocumentStatus = "processed"
	// StatusCompleted means the document is fully queryable.
	StatusCompleted DocumentStatus = "completed"
	// StatusFailed means the last indexing run raised an unrecoverable error.
	StatusFailed DocumentStatus = "failed"
)

// transitions lists the allowed edges out of every status.
// failed -> processing exists only for explicit re-runs.
var transitions = map[DocumentStatus][]DocumentStatus{
	StatusCreated:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusProcessed, StatusFailed},
	StatusProcessed:  {StatusCompleted},
	StatusCompleted:  nil,
	StatusFailed:     {StatusProcessing},
}

// Statuses returns every known status in lifecycle order.
func Statuses() []DocumentStatus {
	return []DocumentStatus{StatusCreated, StatusProcessing, StatusProcessed, StatusCompleted, StatusFailed}
}

// CanTransition reports whether a document may move from one status to another.
func CanTransition(from, to DocumentStatus) bool {
	return slices.Contains(transitions[from], to)
}

// IsTerminal reports whether no pipeline-driven transition leaves the status.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidateStatus validates that a DocumentStatus has a known value.
func ValidateStatus(s DocumentStatus) error {
	if _, ok := transitions[s]; !ok {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
	return nil
}

// CheckTransition returns ErrConflict when the edge is not allowed.
func CheckTransition(from, to DocumentStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: cannot move document from %s to %s", ErrConflict, from, to)
	}
	return nil
}
