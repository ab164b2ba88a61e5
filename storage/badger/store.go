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

package badger

import "errors"

// Store bundles the repositories that share one backend.
type Store struct {
	Backend   *Backend
	Documents *DocumentRepository
	Sessions  *SessionRepository
	Vectors   *VectorIndex
}

// OpenStore opens a backend and every repository on it.
func OpenStore(path string, inMemory bool) (*Store, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	docs, err := NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	sessions, err := NewSessionRepository(backend)
	if err != nil {
		docs.Close()
		backend.Close()
		return nil, err
	}

	return &Store{
		Backend:   backend,
		Documents: docs,
		Sessions:  sessions,
		Vectors:   NewVectorIndex(backend),
	}, nil
}

// NewMemoryStore creates an in-memory store for testing.
// Caller must Close it when done.
func NewMemoryStore() (*Store, error) {
	return OpenStore("", true)
}

// Close releases the repositories, then the backend.
func (s *Store) Close() error {
	return errors.Join(s.Sessions.Close(), s.Documents.Close(), s.Backend.Close())
}
