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

package storage

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docchat/core"
)

// codec is the subset of a mus-go serializer used here.
type codec[T any] interface {
	Marshal(v T, bs []byte) int
	Unmarshal(bs []byte) (T, int, error)
	Size(v T) int
}

// encoder runs a write function twice: once to size the buffer, once to fill it.
type encoder struct {
	bs     []byte
	n      int
	sizing bool
}

func encode(write func(e *encoder)) []byte {
	s := &encoder{sizing: true}
	write(s)
	e := &encoder{bs: make([]byte, s.n)}
	write(e)
	return e.bs
}

func put[T any](e *encoder, c codec[T], v T) {
	if e.sizing {
		e.n += c.Size(v)
		return
	}
	e.n += c.Marshal(v, e.bs[e.n:])
}

func (e *encoder) string(s string)  { put(e, ord.String, s) }
func (e *encoder) uint64(v uint64)  { put(e, varint.Uint64, v) }
func (e *encoder) int(v int)        { put(e, varint.Int64, int64(v)) }
func (e *encoder) int64(v int64)    { put(e, varint.Int64, v) }
func (e *encoder) id(v core.ID)     { e.uint64(uint64(v)) }
func (e *encoder) time(t time.Time) { e.int64(timeToMicros(t)) }

func (e *encoder) floats(v []float32) {
	e.int(len(v))
	for _, f := range v {
		put(e, varint.Uint32, math.Float32bits(f))
	}
}

func (e *encoder) strings(v []string) {
	e.int(len(v))
	for _, s := range v {
		e.string(s)
	}
}

// Map keys are written sorted so equal maps encode identically.
func (e *encoder) stringMap(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	e.int(len(keys))
	for _, k := range keys {
		e.string(k)
		e.string(m[k])
	}
}

// decoder reads fields in order and keeps the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func get[T any](d *decoder, c codec[T]) T {
	var zero T
	if d.err != nil {
		return zero
	}
	v, n, err := c.Unmarshal(d.bs[d.n:])
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		return zero
	}
	d.n += n
	return v
}

func (d *decoder) string() string  { return get(d, ord.String) }
func (d *decoder) uint64() uint64  { return get(d, varint.Uint64) }
func (d *decoder) int() int        { return int(get(d, varint.Int64)) }
func (d *decoder) int64() int64    { return get(d, varint.Int64) }
func (d *decoder) id() core.ID     { return core.ID(d.uint64()) }
func (d *decoder) time() time.Time { return microsToTime(d.int64()) }
func (d *decoder) length() (int, bool) {
	n := d.int()
	if d.err != nil {
		return 0, false
	}
	if n < 0 || n > len(d.bs)-d.n {
		d.err = fmt.Errorf("%w: invalid length %d", ErrSerializationFailed, n)
		return 0, false
	}
	return n, true
}

func (d *decoder) floats() []float32 {
	n, ok := d.length()
	if !ok || n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(get(d, varint.Uint32))
	}
	return out
}

func (d *decoder) strings() []string {
	n, ok := d.length()
	if !ok || n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = d.string()
	}
	return out
}

func (d *decoder) stringMap() map[string]string {
	n, ok := d.length()
	if !ok || n == 0 {
		return nil
	}
	out := make(map[string]string, n)
	for range n {
		k := d.string()
		out[k] = d.string()
	}
	return out
}

// Zero times are stored as 0 so they survive a round trip.
func timeToMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microsToTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	return encode(func(e *encoder) { e.id(id) })
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	d := &decoder{bs: data}
	id := d.id()
	return id, d.err
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	return encode(func(e *encoder) {
		e.id(doc.ID)
		e.string(doc.Name)
		e.string(string(doc.FileType))
		e.string(doc.ContentHash)
		e.int64(doc.Size)
		e.string(string(doc.Status))
		e.string(doc.Summary)
		e.string(doc.Error)
		e.int(doc.ChunkCount)
		e.time(doc.CreatedAt)
		e.time(doc.UpdatedAt)
	})
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	d := &decoder{bs: data}
	doc := &core.Document{
		ID:          d.id(),
		Name:        d.string(),
		FileType:    core.FileType(d.string()),
		ContentHash: d.string(),
		Size:        d.int64(),
		Status:      core.DocumentStatus(d.string()),
		Summary:     d.string(),
		Error:       d.string(),
		ChunkCount:  d.int(),
		CreatedAt:   d.time(),
		UpdatedAt:   d.time(),
	}
	if d.err != nil {
		return nil, d.err
	}
	return doc, nil
}

// MarshalSession serializes a Session to bytes.
func MarshalSession(s *core.Session) []byte {
	return encode(func(e *encoder) {
		e.id(s.ID)
		e.id(s.DocumentID)
		e.time(s.CreatedAt)
	})
}

// UnmarshalSession deserializes a Session from bytes.
func UnmarshalSession(data []byte) (*core.Session, error) {
	d := &decoder{bs: data}
	s := &core.Session{
		ID:         d.id(),
		DocumentID: d.id(),
		CreatedAt:  d.time(),
	}
	if d.err != nil {
		return nil, d.err
	}
	return s, nil
}

// MarshalMessage serializes a Message to bytes.
func MarshalMessage(m *core.Message) []byte {
	return encode(func(e *encoder) {
		e.id(m.ID)
		e.id(m.SessionID)
		e.uint64(m.Sequence)
		e.string(string(m.Role))
		e.string(m.Content)
		e.string(m.ProviderID)
		e.string(m.ModelName)
		e.strings(m.ToolIDs)
		e.time(m.Timestamp)
	})
}

// UnmarshalMessage deserializes a Message from bytes.
func UnmarshalMessage(data []byte) (*core.Message, error) {
	d := &decoder{bs: data}
	m := &core.Message{
		ID:         d.id(),
		SessionID:  d.id(),
		Sequence:   d.uint64(),
		Role:       core.Role(d.string()),
		Content:    d.string(),
		ProviderID: d.string(),
		ModelName:  d.string(),
		ToolIDs:    d.strings(),
		Timestamp:  d.time(),
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

// MarshalVectorRecord serializes a VectorRecord to bytes.
func MarshalVectorRecord(r *VectorRecord) []byte {
	return encode(func(e *encoder) {
		e.string(r.ChunkID)
		e.id(r.DocumentID)
		e.int(r.Ordinal)
		e.string(r.Text)
		e.floats(r.Vector)
		e.stringMap(r.Metadata)
	})
}

// UnmarshalVectorRecord deserializes a VectorRecord from bytes.
func UnmarshalVectorRecord(data []byte) (*VectorRecord, error) {
	d := &decoder{bs: data}
	r := &VectorRecord{
		ChunkID:    d.string(),
		DocumentID: d.id(),
		Ordinal:    d.int(),
		Text:       d.string(),
		Vector:     d.floats(),
		Metadata:   d.stringMap(),
	}
	if d.err != nil {
		return nil, d.err
	}
	return r, nil
}
