package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "short content", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)
			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("The sky is blue."))
	b := ContentHash([]byte("The sky is blue."))
	c := ContentHash([]byte("Water is wet."))

	if a != b {
		t.Errorf("ContentHash() not deterministic: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("ContentHash() collided for different content")
	}
	if len(a) != 64 {
		t.Errorf("ContentHash() length = %d, want 64 hex chars", len(a))
	}
}

func TestNamespace(t *testing.T) {
	if got := Namespace(42); got != "doc-42" {
		t.Errorf("Namespace(42) = %q, want %q", got, "doc-42")
	}
	if Namespace(1) == Namespace(2) {
		t.Error("Namespace() must differ per document")
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("17")
	if err != nil {
		t.Fatalf("ParseID() error = %v", err)
	}
	if id != 17 || id.String() != "17" {
		t.Errorf("ParseID() = %d", id)
	}

	if _, err := ParseID("seventeen"); err == nil {
		t.Error("ParseID() expected error for non-numeric input")
	}
}

func TestDocument_Queryable(t *testing.T) {
	for _, status := range Statuses() {
		doc := &Document{Status: status}
		want := status == StatusCompleted
		if doc.Queryable() != want {
			t.Errorf("Queryable() for %s = %v, want %v", status, doc.Queryable(), want)
		}
	}
}
