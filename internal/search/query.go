// Package search fans a query out to the configured sources and keeps the
// visible result set consistent with the latest query.
//
// Dispatch runs synchronous sources inline and every async source on its own
// goroutine. Rounds are numbered by a generation counter; a task only
// publishes while its round is current, and publication happens on the
// cooperative loop through a Scheduler, where the Aggregator drops results of
// any round that is no longer current.
package search

import (
	"strings"

	"github.com/runger/flare/internal/source"
)

// Query is one search request.
type Query struct {
	Text string
	Mode string
}

// Parse derives a Query from the raw input line. An input beginning with a
// known alias followed by a space switches to that alias' mode, and the alias
// is stripped from the text. Otherwise the current mode is kept.
func Parse(input, mode string, aliases []string) Query {
	if mode == "" {
		mode = source.ModeAll
	}
	head, rest, ok := strings.Cut(input, " ")
	if ok && head != "" {
		for _, a := range aliases {
			if a == head {
				return Query{Text: rest, Mode: a}
			}
		}
	}
	return Query{Text: input, Mode: mode}
}

// Request converts q into what sources receive.
func (q Query) Request() source.Request {
	return source.Request{Keyword: q.Text, Mode: q.Mode}
}
