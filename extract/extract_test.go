package extract

import (
	"context"
	"testing"

	"github.com/poiesic/docchat/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Text(t *testing.T) {
	r := NewRegistry()

	text, err := r.Extract(context.Background(), []byte("\ufeffThe sky is blue.\r\n\r\n\r\n\r\nWater is wet.\r\n"), core.FileTypeText)
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.\n\nWater is wet.", text)
}

func TestRegistry_Markdown(t *testing.T) {
	r := NewRegistry()
	raw := "# Title\n\nSome *emphasis* and a [link](http://example.com).\n\n- one\n- two\n"

	text, err := r.Extract(context.Background(), []byte(raw), core.FileTypeMarkdown)
	require.NoError(t, err)
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Some emphasis and a link.")
	assert.Contains(t, text, "one")
	assert.NotContains(t, text, "*")
	assert.NotContains(t, text, "http://example.com")
	assert.NotContains(t, text, "<")
}

func TestRegistry_HTML(t *testing.T) {
	r := NewRegistry()
	raw := `<html><head><title>t</title><style>p{}</style></head>
<body><h1>Heading</h1><p>The   sky
is <b>blue</b>.</p><script>alert(1)</script><p>Water is wet.</p></body></html>`

	text, err := r.Extract(context.Background(), []byte(raw), core.FileTypeHTML)
	require.NoError(t, err)
	assert.Equal(t, "Heading\n\nThe sky is blue.\n\nWater is wet.", text)
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extract(context.Background(), []byte("x"), "pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.False(t, r.Supports("pdf"))
	assert.True(t, r.Supports(core.FileTypeHTML))

	_, err = r.Extract(context.Background(), []byte{0xff, 0xfe, 0x00}, core.FileTypeText)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("csv", ExtractorFunc(func(ctx context.Context, raw []byte) (string, error) {
		return "custom", nil
	}))

	text, err := r.Extract(context.Background(), nil, "csv")
	require.NoError(t, err)
	assert.Equal(t, "custom", text)
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name string
		want core.FileType
	}{
		{"notes.txt", core.FileTypeText},
		{"README.MD", core.FileTypeMarkdown},
		{"guide.markdown", core.FileTypeMarkdown},
		{"page.htm", core.FileTypeHTML},
		{"index.html", core.FileTypeHTML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFileType(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DetectFileType("report.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
