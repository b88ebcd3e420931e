package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/flare/internal/config"
	"github.com/runger/flare/internal/errs"
)

func names(r *Registry) []string {
	out := make([]string, 0, r.Len())
	for _, s := range r.Sources() {
		out = append(out, s.Name)
	}
	return out
}

func TestLoad_DefaultSources(t *testing.T) {
	t.Parallel()

	r := Load(config.DefaultSources(), WithClipboard(fakeClipboard{}), WithRunner(&fakeRunner{}))
	defer r.Close()

	assert.Empty(t, r.Diagnostics())
	assert.Equal(t, []string{"Kill Process", "Calculator", "Clipboard", "Apps", "Now Playing", "Web Search"}, names(r))
	assert.Equal(t, []string{"ps", "app", "g"}, r.Aliases())

	web, ok := r.Get("Web Search")
	require.True(t, ok)
	assert.True(t, web.KeywordRequired)
	assert.Equal(t, VariantWeb, web.Variant)
	assert.Equal(t, MethodWebLauncher, web.Method)
}

func TestLoad_StableOrderByPriority(t *testing.T) {
	t.Parallel()

	records := []config.SourceRecord{
		{Type: "calc", Name: "c", Priority: 5},
		{Type: "calc", Name: "a", Priority: 1},
		{Type: "calc", Name: "b", Priority: 5},
		{Type: "calc", Name: "d", Priority: 1},
	}
	r := Load(records)
	assert.Equal(t, []string{"a", "d", "c", "b"}, names(r))
}

func TestLoad_InvalidRecordsBecomeDiagnostics(t *testing.T) {
	t.Parallel()

	records := []config.SourceRecord{
		{Type: "teleport", Name: "unknown"},
		{Type: "calc", Name: ""},
		{Type: "web", Name: "bad web", Args: map[string]any{"url": "https://example.com"}},
		{Type: "bulk_text", Name: "no exec"},
		{Type: "bulk_text", Name: "bad quoting", Args: map[string]any{"exec": `dict "unterminated`}},
		{Type: "command", Name: "empty commands"},
		{Type: "calc", Name: "negative", Priority: -1},
		{Type: "event", Name: "no db"},
		{Type: "calc", Name: "ok", Priority: 1},
		{Type: "calc", Name: "ok", Priority: 2},
	}
	r := Load(records)

	assert.Equal(t, []string{"ok"}, names(r))
	diags := r.Diagnostics()
	assert.Len(t, diags, 9)
	for _, d := range diags {
		assert.Equal(t, errs.InvalidSource, d.Kind)
		assert.Equal(t, errs.NonBreaking, d.Severity)
	}
}

func TestLoad_Timeouts(t *testing.T) {
	t.Parallel()

	records := []config.SourceRecord{
		{Type: "media", Name: "default", Async: true, Priority: 1},
		{Type: "media", Name: "custom", Async: true, Priority: 2, TimeoutMs: 250},
	}

	r := Load(records, WithRunner(&fakeRunner{}))
	def, _ := r.Get("default")
	assert.Equal(t, DefaultAsyncTimeout, def.Timeout)

	r = Load(records, WithRunner(&fakeRunner{}), WithDefaultTimeout(time.Second))
	def, _ = r.Get("default")
	custom, _ := r.Get("custom")
	assert.Equal(t, time.Second, def.Timeout)
	assert.Equal(t, 250*time.Millisecond, custom.Timeout)
}

func TestLoad_AppCatalogMerged(t *testing.T) {
	t.Parallel()

	records := []config.SourceRecord{{
		Type: "app", Name: "Apps", Priority: 1,
		Args: map[string]any{"apps": map[string]any{"editor": "nvim-qt"}},
	}}
	r := Load(records, WithAppCatalog(map[string]string{"editor": "gedit", "firefox": "firefox"}))

	apps, ok := r.Get("Apps")
	require.True(t, ok)
	items, err := apps.Produce(context.Background(), Request{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "nvim-qt", items[0].Exec, "config entries win over catalog entries")
	assert.Equal(t, "firefox", items[1].Exec)
}

func TestLoad_BulkTextSplitsExec(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{out: map[string]string{"dict": "word"}}
	records := []config.SourceRecord{{
		Type: "bulk_text", Name: "Dictionary", Alias: "d", Priority: 1,
		Args: map[string]any{"exec": `dict -d "wn"`, "args": []any{"{keyword}"}},
	}}
	r := Load(records, WithRunner(runner))
	src, ok := r.Get("Dictionary")
	require.True(t, ok)

	_, err := src.Produce(context.Background(), Request{Keyword: "fire", Mode: "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dict", "-d", "wn", "fire"}, runner.calls[0])
	assert.Equal(t, MethodPrint, src.Method)
}

func TestLoad_EventSourceOwnsDatabase(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "cal", "events.db")
	records := []config.SourceRecord{{Type: "event", Name: "Calendar", Alias: "cal", Priority: 2}}
	r := Load(records, WithEventsDatabase(dbPath))
	require.Empty(t, r.Diagnostics())

	_, err := os.Stat(filepath.Dir(dbPath))
	assert.True(t, os.IsNotExist(err), "Load must not touch the disk")

	src, ok := r.Get("Calendar")
	require.True(t, ok)
	items, err := src.Produce(context.Background(), Request{Mode: "cal"})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.FileExists(t, dbPath)
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestLoad_EventDatabaseFailureIsPerQuery(t *testing.T) {
	t.Parallel()

	// A regular file where the database directory should be.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	records := []config.SourceRecord{{Type: "event", Name: "Calendar", Alias: "cal", Priority: 2}}
	r := Load(records, WithEventsDatabase(filepath.Join(blocker, "events.db")))
	defer r.Close()
	require.Empty(t, r.Diagnostics())

	src, ok := r.Get("Calendar")
	require.True(t, ok)
	_, err := src.Produce(context.Background(), Request{Mode: "cal"})
	require.Error(t, err)
	assert.Equal(t, errs.DirCreate, errs.KindOf(err))
}
