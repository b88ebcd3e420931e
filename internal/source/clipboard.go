package source

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/runger/flare/internal/errs"
)

// clipboardPreview is the number of runes shown in the tile title.
const clipboardPreview = 80

// ClipboardReader reads the current clipboard text.
type ClipboardReader interface {
	ReadAll() (string, error)
}

// SystemClipboard reads the desktop clipboard.
type SystemClipboard struct{}

func (SystemClipboard) ReadAll() (string, error) { return clipboard.ReadAll() }

// ClipboardSource offers the current clipboard content.
type ClipboardSource struct {
	reader ClipboardReader
}

// NewClipboardSource wraps a clipboard reader.
func NewClipboardSource(reader ClipboardReader) *ClipboardSource {
	return &ClipboardSource{reader: reader}
}

func (c *ClipboardSource) Produce(_ context.Context, req Request) ([]Item, error) {
	content, err := c.reader.ReadAll()
	if err != nil {
		return nil, errs.Wrap(errs.ResourceLookup, "failed to read clipboard", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	keyword := strings.ToLower(strings.TrimSpace(req.Keyword))
	if keyword != "" && !strings.Contains(strings.ToLower(content), keyword) {
		return nil, nil
	}

	return []Item{{
		Title:    preview(content),
		Subtitle: "Clipboard",
		Text:     content,
		Exec:     content,
	}}, nil
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= clipboardPreview {
		return s
	}
	return string(r[:clipboardPreview-1]) + "…"
}
