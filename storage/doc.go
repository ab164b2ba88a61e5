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

// Package storage provides the storage abstraction layer for docchat.
//
// This package defines repository interfaces that decouple storage implementation
// from the indexing pipeline and the chat orchestrator.
//
// # Architecture
//
//   - DocumentRepository: documents, raw content and the status compare-and-set
//   - SessionRepository: sessions and their gap-free message history
//   - VectorIndex: embedded chunks partitioned by document namespace
//
// The storage/badger package implements all three over one BadgerDB instance.
// The vector/qdrant package implements VectorIndex against an external Qdrant
// server.
//
// # Ranking
//
// Every VectorIndex returns matches ordered by RankMatches: score descending,
// ties broken by chunk ordinal ascending.
//
// # Serialization
//
// Records are encoded with mus-go varint and ord serializers. Field order is
// part of the on-disk format.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
