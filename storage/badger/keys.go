package badger

import (
	"encoding/binary"

	"github.com/poiesic/docchat/core"
)

// Key prefixes for different data types
const (
	documentPrefix       = "doc:"
	documentStatusPrefix = "docst:"
	documentRawPrefix    = "docraw:"
	documentSessPrefix   = "docsess:"
	documentIDSeq        = "docseq"
	sessionPrefix        = "sess:"
	sessionIDSeq         = "sessseq"
	messagePrefix        = "msg:"
	messageCounterPrefix = "msgctr:"
	messageIDSeq         = "msgseq"
	vectorPrefix         = "vec:"
)

// appendIDs writes each ID in BigEndian order so lexicographic sort follows numeric order.
func appendIDs(prefix string, ids ...uint64) []byte {
	buf := make([]byte, len(prefix)+8*len(ids))
	offset := copy(buf, prefix)
	for _, id := range ids {
		binary.BigEndian.PutUint64(buf[offset:], id)
		offset += 8
	}
	return buf
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return appendIDs(documentPrefix, uint64(id))
}

// makeDocumentStatusKey generates a composite key for the status index.
// Format: prefix:status:id
func makeDocumentStatusKey(status core.DocumentStatus, id core.ID) []byte {
	return appendIDs(documentStatusPrefix+string(status)+":", uint64(id))
}

// makePartialDocumentStatusKey generates a partial key for status queries.
func makePartialDocumentStatusKey(status core.DocumentStatus) []byte {
	return []byte(documentStatusPrefix + string(status) + ":")
}

// makeDocumentRawKey generates a key for a document's raw content.
func makeDocumentRawKey(id core.ID) []byte {
	return appendIDs(documentRawPrefix, uint64(id))
}

// makeDocumentSessionKey generates a composite key for the document -> session index.
// Format: prefix:documentID:sessionID
func makeDocumentSessionKey(documentID, sessionID core.ID) []byte {
	return appendIDs(documentSessPrefix, uint64(documentID), uint64(sessionID))
}

// makePartialDocumentSessionKey generates a partial key for session queries.
func makePartialDocumentSessionKey(documentID core.ID) []byte {
	return appendIDs(documentSessPrefix, uint64(documentID))
}

// makeSessionKey generates a key for a session by ID.
func makeSessionKey(id core.ID) []byte {
	return appendIDs(sessionPrefix, uint64(id))
}

// makeMessageKey generates a composite key for a message.
// Format: prefix:sessionID:sequence
func makeMessageKey(sessionID core.ID, sequence uint64) []byte {
	return appendIDs(messagePrefix, uint64(sessionID), sequence)
}

// makePartialMessageKey generates a partial key for session history queries.
func makePartialMessageKey(sessionID core.ID) []byte {
	return appendIDs(messagePrefix, uint64(sessionID))
}

// makeMessageCounterKey generates a key for the last sequence number of a session.
func makeMessageCounterKey(sessionID core.ID) []byte {
	return appendIDs(messageCounterPrefix, uint64(sessionID))
}

// makePartialVectorKey generates the prefix covering one namespace.
// The trailing separator keeps "doc-1" from matching "doc-12".
func makePartialVectorKey(namespace string) []byte {
	return []byte(vectorPrefix + namespace + "/")
}

// makeVectorKey generates a key for a chunk within a namespace.
// Format: prefix:namespace/ordinal
func makeVectorKey(namespace string, ordinal int) []byte {
	return appendIDs(vectorPrefix+namespace+"/", uint64(ordinal))
}
