package extract

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/russross/blackfriday/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
}

// block elements end a paragraph.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Blockquote: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Table: true, atom.Tr: true,
	atom.Hr: true, atom.Main: true, atom.Aside: true, atom.Nav: true,
}

func extractHTML(ctx context.Context, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", ErrInvalidEncoding
	}
	return htmlText(raw)
}

// extractMarkdown renders markdown to HTML and reads the text back, which
// drops markup while keeping paragraph and list structure.
func extractMarkdown(ctx context.Context, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", ErrInvalidEncoding
	}
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	rendered := blackfriday.Run(raw, blackfriday.WithExtensions(blackfriday.CommonExtensions))
	return htmlText(rendered)
}

func htmlText(raw []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(n *html.Node, pre bool)
	walk = func(n *html.Node, pre bool) {
		switch n.Type {
		case html.TextNode:
			if pre {
				sb.WriteString(n.Data)
			} else {
				writeCollapsed(&sb, n.Data)
			}
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.Br {
				sb.WriteString("\n")
				return
			}
			if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
				sb.WriteString(" ")
			}
			if n.DataAtom == atom.Pre {
				pre = true
			}
		}
		isBlock := n.Type == html.ElementNode && block[n.DataAtom]
		if isBlock {
			sb.WriteString("\n\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, pre)
		}
		if isBlock {
			sb.WriteString("\n\n")
		}
	}
	walk(doc, false)

	lines := strings.Split(sb.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return normalize(strings.Join(lines, "\n")), nil
}

// writeCollapsed writes text with whitespace runs reduced to one space.
func writeCollapsed(sb *strings.Builder, text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		if text != "" {
			sb.WriteString(" ")
		}
		return
	}
	if startsWithSpace(text) {
		sb.WriteString(" ")
	}
	sb.WriteString(strings.Join(fields, " "))
	if endsWithSpace(text) {
		sb.WriteString(" ")
	}
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s, " \t\n\r\f") != s
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s, " \t\n\r\f") != s
}
