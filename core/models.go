package core

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated from database sequences.
type ID uint64

// String renders the ID in base 10.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses a base 10 ID.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ContentHash returns the hex encoded BLAKE2b-256 digest of raw document bytes.
// Documents reference their stored raw content by this value.
func ContentHash(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Namespace returns the vector index namespace owned by a document.
func Namespace(documentID ID) string {
	return "doc-" + documentID.String()
}

// FileType identifies the format of an uploaded document.
type FileType string

const (
	FileTypeText     FileType = "txt"
	FileTypeMarkdown FileType = "md"
	FileTypeHTML     FileType = "html"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Document is an uploaded source and its indexing state.
type Document struct {
	ID          ID
	Name        string
	FileType    FileType
	ContentHash string // BLAKE2b-256 of the raw bytes
	Size        int64
	Status      DocumentStatus
	Summary     string
	Error       string // Human readable cause of the last failure
	ChunkCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Queryable reports whether retrieval may run against the document.
func (d *Document) Queryable() bool {
	return d.Status == StatusCompleted
}

// Chunk is a bounded span of a document's text used for embedding and retrieval.
type Chunk struct {
	ID         string
	DocumentID ID
	Ordinal    int
	Text       string
	Vector     []float32
	Metadata   map[string]string
}

// Session is a conversation about a single document.
type Session struct {
	ID         ID
	DocumentID ID
	CreatedAt  time.Time
}

// Message is an append-only entry in a session's history.
type Message struct {
	ID         ID
	SessionID  ID
	Sequence   uint64 // 1-based, gap-free within the session
	Role       Role
	Content    string
	ProviderID string
	ModelName  string
	ToolIDs    []string
	Timestamp  time.Time
}
