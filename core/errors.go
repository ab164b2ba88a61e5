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
	"errors"
	"fmt"
)

// Error taxonomy shared by every package. Callers classify failures with errors.Is.
var (
	// ErrValidation indicates malformed input. Not retryable.
	ErrValidation = errors.New("validation error")

	// ErrConflict indicates the request collides with the current state.
	// The caller may retry later.
	ErrConflict = errors.New("conflict")

	// ErrProvider indicates an embedding, language model or vector store failure.
	ErrProvider = errors.New("provider error")

	// ErrNotFound indicates an unknown document, session, tool or provider.
	ErrNotFound = errors.New("not found")

	// ErrInvariantViolation indicates corrupted persisted state, such as a gap in
	// message sequence numbers. It must never be swallowed.
	ErrInvariantViolation = errors.New("invariant violation")
)

// Refinements of the taxonomy.
var (
	// ErrNotReady indicates a chat against a document that is not completed or a
	// session that does not belong to the document.
	ErrNotReady = fmt.Errorf("%w: document not ready", ErrConflict)

	// ErrEmptyDocument indicates the extracted text yields no chunks.
	ErrEmptyDocument = fmt.Errorf("%w: document is empty", ErrValidation)

	// ErrEmptyContent indicates a message without content.
	ErrEmptyContent = fmt.Errorf("%w: content cannot be empty", ErrValidation)

	// ErrInvalidRole indicates an unknown message role.
	ErrInvalidRole = fmt.Errorf("%w: invalid role", ErrValidation)

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = fmt.Errorf("%w: invalid document", ErrValidation)
)
