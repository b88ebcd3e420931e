package search

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/runger/flare/internal/metrics"
	"github.com/runger/flare/internal/source"
)

func testutilCount(m *metrics.Metrics, src, outcome string) float64 {
	return testutil.ToFloat64(m.SourceResults.WithLabelValues(src, outcome))
}

func TestAggregator_StaleApplyIsNoop(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	a.Begin(1, Query{Text: "", Mode: source.ModeAll}, []source.Item{{Title: "one"}})
	a.Begin(2, Query{Text: "", Mode: source.ModeAll}, []source.Item{{Title: "two"}})

	assert.False(t, a.Apply(1, []source.Item{{Title: "late"}}))
	assert.Equal(t, []string{"two"}, itemTitles(a.Items()))

	assert.True(t, a.Apply(2, []source.Item{{Title: "more"}}))
	assert.Equal(t, []string{"two", "more"}, itemTitles(a.Items()))
}

func TestAggregator_OnChange(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	var calls int
	var last []source.Item
	a.OnChange(func(round uint64, items []source.Item) {
		calls++
		last = items
	})

	a.Begin(7, Query{Text: "fire", Mode: source.ModeAll}, []source.Item{{Title: "firefox"}})
	a.Apply(7, []source.Item{{Title: "fire"}})
	a.Apply(6, []source.Item{{Title: "ignored"}})
	a.Apply(7, nil)

	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"fire", "firefox"}, itemTitles(last))
	assert.Equal(t, uint64(7), a.Round())
	assert.Equal(t, "fire", a.Query().Text)
}

func TestAggregator_BeginDoesNotAliasInput(t *testing.T) {
	t.Parallel()

	immediate := []source.Item{{Title: "a"}}
	a := NewAggregator()
	a.Begin(1, Query{}, immediate)
	a.Apply(1, []source.Item{{Title: "b"}})
	immediate[0].Title = "changed"

	assert.Equal(t, []string{"a", "b"}, itemTitles(a.Items()))
}
