package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/flare/internal/api"
	"github.com/runger/flare/internal/config"
	"github.com/runger/flare/internal/source"
)

// inlineScheduler runs posted functions immediately; enough for sync sources.
type inlineScheduler struct{}

func (inlineScheduler) Post(fn func()) { fn() }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Sources = []config.SourceRecord{
		{Type: "calc", Name: "Calculator", Priority: 1},
		{Type: "command", Name: "Power", Alias: "pw", Priority: 2,
			Args: map[string]any{"commands": map[string]any{"suspend": "systemctl suspend", "reboot": "systemctl reboot"}}},
	}
	return cfg
}

func TestContext_SearchRendersToSurface(t *testing.T) {
	t.Parallel()

	c := New(testConfig(), inlineScheduler{}, Options{})
	defer c.Close()

	s := &fakeSurface{}
	c.Queue.RegisterSurface(s)

	_, pending := c.Search(context.Background(), "2 * 21")
	pending.Wait()

	require.NotEmpty(t, s.rendered)
	last := s.rendered[len(s.rendered)-1]
	require.NotEmpty(t, last)
	assert.Equal(t, "42", last[0].Title)
	assert.Equal(t, 1, last[0].Shortcut)
}

func TestContext_AliasSwitchesMode(t *testing.T) {
	t.Parallel()

	c := New(testConfig(), inlineScheduler{}, Options{})
	defer c.Close()

	q, _ := c.Search(context.Background(), "pw sus")
	assert.Equal(t, "pw", q.Mode)
	assert.Equal(t, "sus", q.Text)
	assert.Equal(t, "pw", c.Mode())

	items := c.Aggregator.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "systemctl suspend", items[0].Exec)

	c.SetMode("")
	assert.Equal(t, source.ModeAll, c.Mode())
}

func TestContext_Reload(t *testing.T) {
	t.Parallel()

	c := New(testConfig(), inlineScheduler{}, Options{})
	defer c.Close()

	cfg := testConfig()
	cfg.Sources = append(cfg.Sources, config.SourceRecord{Type: "bogus", Name: "x"})
	warnings := c.Reload(cfg)
	require.Len(t, warnings, 1)
	assert.Len(t, c.Diagnostics(), 1)
	assert.Equal(t, 2, c.Dispatcher.Registry().Len())
	assert.Same(t, cfg, c.Config)
}

func TestContext_Apply(t *testing.T) {
	t.Parallel()

	c := New(testConfig(), inlineScheduler{}, Options{})
	defer c.Close()

	c.Apply(api.Show())
	assert.Len(t, c.Queue.Pending(), 1)

	w := &fakeWindow{}
	c.Queue.RegisterWindow(w)
	assert.Equal(t, 1, w.presented)
}
