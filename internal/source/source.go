// Package source implements the result-producing sources of the launcher and
// the registry that holds them.
//
// A Source is static metadata (name, alias, priority, flags) plus one variant
// payload implementing Producer. Sources are built once from configuration and
// never mutated; reloading builds a new Registry.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/runger/flare/internal/errs"
)

// ModeAll is the mode in which every non-home-only source is eligible.
const ModeAll = "all"

// HomeOnlyPriority marks a source that is hidden in ModeAll and reachable only
// through its alias.
const HomeOnlyPriority = 0

// Variant names a source type as written in configuration.
type Variant string

const (
	VariantApp       Variant = "app"
	VariantWeb       Variant = "web"
	VariantCalc      Variant = "calc"
	VariantCommand   Variant = "command"
	VariantBulkText  Variant = "bulk_text"
	VariantClipboard Variant = "clipboard"
	VariantEvent     Variant = "event"
	VariantMedia     Variant = "media"
	VariantProcess   Variant = "process"
)

// Method tags select the downstream action for an item.
const (
	MethodAppLauncher = "app_launcher"
	MethodWebLauncher = "web_launcher"
	MethodCommand     = "command"
	MethodCopy        = "copy"
	MethodKill        = "kill"
	MethodPrint       = "print"
	MethodError       = "error"
)

// Request is what a source receives for one dispatch round.
type Request struct {
	Keyword string
	Mode    string
}

// Item is one contribution of a source to a result set.
type Item struct {
	Score    float64
	Source   string
	Method   string
	Title    string
	Subtitle string
	Text     string // searchable text used for ranking; defaults to Title
	Exec     string // action target: command line, URL, text, pid
	Shortcut int    // 1..5 when eligible for a numbered accelerator, else 0
	Err      *errs.Error
}

// SearchText returns the text ranking compares against the query.
func (it Item) SearchText() string {
	if it.Text != "" {
		return it.Text
	}
	return it.Title
}

// Producer computes a source's contribution. Returning no items and a nil
// error means "nothing to show"; a non-nil error becomes an error tile.
type Producer interface {
	Produce(ctx context.Context, req Request) ([]Item, error)
}

// Source is a configured result producer.
type Source struct {
	Name            string
	Alias           string
	Method          string
	Priority        float64
	Home            bool
	Async           bool
	KeywordRequired bool
	Timeout         time.Duration
	Variant         Variant

	producer Producer
}

// New builds a Source around an explicit producer. Registry.Load is the usual
// constructor; New exists for embedding custom producers.
func New(meta Source, p Producer) *Source {
	s := meta
	s.producer = p
	return &s
}

// Eligible reports whether s takes part in a dispatch for mode.
func (s *Source) Eligible(mode string) bool {
	if s.Alias == mode {
		return true
	}
	return mode == ModeAll && s.Priority != HomeOnlyPriority
}

// Accepts reports whether s contributes for keyword. Keyword-required
// sources stay silent on an empty keyword; home sources only contribute on
// the empty-keyword home screen.
func (s *Source) Accepts(keyword string) bool {
	empty := strings.TrimSpace(keyword) == ""
	if s.KeywordRequired && empty {
		return false
	}
	if s.Home && !empty {
		return false
	}
	return true
}

// Produce runs the variant and stamps source metadata onto its items.
func (s *Source) Produce(ctx context.Context, req Request) ([]Item, error) {
	items, err := s.producer.Produce(ctx, req)
	for i := range items {
		if items[i].Source == "" {
			items[i].Source = s.Name
		}
		if items[i].Method == "" {
			items[i].Method = s.Method
		}
		if items[i].Score == 0 {
			items[i].Score = s.Priority
		}
	}
	return items, err
}

// ErrorItem is the tile shown when a source fails.
func ErrorItem(sourceName string, e *errs.Error) Item {
	return Item{
		Score:    -1,
		Source:   sourceName,
		Method:   MethodError,
		Title:    e.Message,
		Subtitle: sourceName + ": " + string(e.Kind),
		Text:     sourceName,
		Err:      e,
	}
}
