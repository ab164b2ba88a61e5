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
	"strings"
	"time"
)

// ValidateDocument validates a new Document according to domain rules.
//
// Validation rules:
//   - Name must not be blank
//   - FileType must not be empty
//   - ContentHash must be set
//   - Status must be known
//
// NOT validated (populated by the pipeline):
//   - Summary, Error, ChunkCount
//   - ID (assigned from the database sequence)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidDocument)
	}
	if doc.FileType == "" {
		return fmt.Errorf("%w: file type cannot be empty", ErrInvalidDocument)
	}
	if doc.ContentHash == "" {
		return fmt.Errorf("%w: content hash cannot be empty", ErrInvalidDocument)
	}
	if err := ValidateStatus(doc.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// ValidateMessage validates a Message before it is appended.
//
// Sequence and ID are assigned by the store and are not checked.
func ValidateMessage(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrValidation)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return ErrEmptyContent
	}
	if err := ValidateRole(msg.Role); err != nil {
		return err
	}
	if !IsValidTimestamp(msg.Timestamp) {
		return fmt.Errorf("%w: timestamp cannot be in the future", ErrValidation)
	}
	return nil
}

// ValidateRole validates that a Role has a valid value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAgent {
		return fmt.Errorf("%w: value %q", ErrInvalidRole, role)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
