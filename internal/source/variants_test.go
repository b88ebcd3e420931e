package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/flare/internal/errs"
)

type fakeRunner struct {
	out   map[string]string
	err   error
	calls [][]string
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.out[name]), nil
}

type fakeClipboard struct {
	text string
	err  error
}

func (f fakeClipboard) ReadAll() (string, error) { return f.text, f.err }

func titles(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func TestAppSource(t *testing.T) {
	t.Parallel()

	apps := NewAppSource(map[string]string{
		"firefox":  "firefox %u",
		"files":    "nautilus",
		"terminal": "alacritty",
	})

	all, err := apps.Produce(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"files", "firefox", "terminal"}, titles(all))

	matched, err := apps.Produce(context.Background(), Request{Keyword: "ffx"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "firefox", matched[0].Title)
	assert.Equal(t, "firefox %u", matched[0].Exec)
}

func TestCommandSource(t *testing.T) {
	t.Parallel()

	cmds := NewCommandSource(map[string]string{"lock": "loginctl lock-session", "suspend": "systemctl suspend"})
	items, err := cmds.Produce(context.Background(), Request{Keyword: "sus"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "systemctl suspend", items[0].Exec)
}

func TestCalcSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		want string
		ok   bool
	}{
		{"1 + 2", "3", true},
		{"2^10", "1024", true},
		{"(3 + 4) * 2", "14", true},
		{"10 / 4", "2.5", true},
		{"7 % 3", "1", true},
		{"1 / 0", "", false},
		{"42", "", false},
		{"firefox", "", false},
		{"alert(1)", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()
			items, err := CalcSource{}.Produce(context.Background(), Request{Keyword: tt.expr})
			require.NoError(t, err)
			if !tt.ok {
				assert.Empty(t, items)
				return
			}
			require.Len(t, items, 1)
			assert.Equal(t, tt.want, items[0].Title)
			assert.Equal(t, tt.want, items[0].Exec)
		})
	}
}

func TestEvaluate_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := Evaluate(ctx, "1 + 1")
	assert.False(t, ok)
}

func TestWebSource_URL(t *testing.T) {
	t.Parallel()

	w := NewWebSource("duckduckgo", "https://duckduckgo.com/?q={keyword}", "", nil)
	items, err := w.Produce(context.Background(), Request{Keyword: "go modules"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://duckduckgo.com/?q=go+modules", items[0].Exec)
	assert.Equal(t, "Search duckduckgo", items[0].Subtitle)
}

func TestWebSource_Suggestions(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gola", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["gola",["golang","gola","golang generics",1]]`))
	}))
	defer srv.Close()

	w := NewWebSource("ddg", "https://ddg/?q={keyword}", srv.URL+"/ac?q={keyword}", NewHTTPClient())
	items, err := w.Produce(context.Background(), Request{Keyword: "gola"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gola", "golang", "golang generics"}, titles(items))
	assert.Equal(t, "https://ddg/?q=golang+generics", items[2].Exec)
}

func TestWebSource_SuggestionFailureKeepsSearchTile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebSource("ddg", "https://ddg/?q={keyword}", srv.URL+"/?q={keyword}", NewHTTPClient())
	items, err := w.Produce(context.Background(), Request{Keyword: "x"})
	require.Error(t, err)
	assert.Equal(t, errs.Network, errs.KindOf(err))
	assert.Len(t, items, 1)
}

func TestBulkTextSource(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{out: map[string]string{"dict": "fire\nn. combustion\n"}}
	b := NewBulkTextSource("dict", []string{"-d", "{keyword}"}, runner)

	items, err := b.Produce(context.Background(), Request{Keyword: "fire"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fire", items[0].Title)
	assert.Equal(t, "n. combustion", items[0].Subtitle)
	assert.Equal(t, []string{"dict", "-d", "fire"}, runner.calls[0])
}

func TestBulkTextSource_Error(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errs.New(errs.CommandExec, "dict failed", "no such word")}
	_, err := NewBulkTextSource("dict", nil, runner).Produce(context.Background(), Request{Keyword: "x"})
	assert.Equal(t, errs.CommandExec, errs.KindOf(err))
}

func TestClipboardSource(t *testing.T) {
	t.Parallel()

	c := NewClipboardSource(fakeClipboard{text: "Hello   World\nagain"})

	items, err := c.Produce(context.Background(), Request{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Hello World again", items[0].Title)
	assert.Equal(t, "Hello   World\nagain", items[0].Exec)

	items, err = c.Produce(context.Background(), Request{Keyword: "world"})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = c.Produce(context.Background(), Request{Keyword: "absent"})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = NewClipboardSource(fakeClipboard{err: errors.New("no display")}).Produce(context.Background(), Request{})
	assert.Equal(t, errs.ResourceLookup, errs.KindOf(err))
}

func TestClipboardSource_LongPreview(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 200)
	items, err := NewClipboardSource(fakeClipboard{text: long}).Produce(context.Background(), Request{})
	require.NoError(t, err)
	assert.Len(t, []rune(items[0].Title), clipboardPreview)
}

func TestMediaSource(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{out: map[string]string{"playerctl": "Playing\tBoards of Canada\tRoygbiv\n"}}
	items, err := NewMediaSource("", runner).Produce(context.Background(), Request{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Roygbiv", items[0].Title)
	assert.Equal(t, "Boards of Canada · Playing", items[0].Subtitle)
	assert.Equal(t, "playerctl play-pause", items[0].Exec)
}

func TestMediaSource_NoPlayer(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errs.New(errs.CommandExec, "playerctl failed", "No players found")}
	items, err := NewMediaSource("playerctl", runner).Produce(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMediaSource_Canceled(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: context.DeadlineExceeded}
	_, err := NewMediaSource("playerctl", runner).Produce(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessSource(t *testing.T) {
	t.Parallel()

	self := strconv.Itoa(os.Getpid())
	runner := &fakeRunner{out: map[string]string{
		"ps": "    1 systemd\n  420 firefox\n  421 Firefox-Web\n " + self + " flare\nbogus\n",
	}}
	items, err := NewProcessSource(runner).Produce(context.Background(), Request{Keyword: "fire"})
	require.NoError(t, err)
	assert.Equal(t, []string{"firefox", "Firefox-Web"}, titles(items))
	assert.Equal(t, "420", items[0].Exec)

	all, err := NewProcessSource(runner).Produce(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"systemd", "firefox", "Firefox-Web"}, titles(all))
}

func TestEventStoreAndSource(t *testing.T) {
	t.Parallel()

	store, err := OpenEventStore(filepath.Join(t.TempDir(), "cal", "events.db"))
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, Event{Title: "Standup", Start: now.Add(time.Hour), End: now.Add(90 * time.Minute), Location: "Room 4"}))
	require.NoError(t, store.Add(ctx, Event{Title: "Review", Start: now.Add(3 * time.Hour), End: now.Add(4 * time.Hour), URL: "https://meet/x"}))
	require.NoError(t, store.Add(ctx, Event{Title: "Past", Start: now.Add(-3 * time.Hour), End: now.Add(-2 * time.Hour)}))
	require.NoError(t, store.Add(ctx, Event{Title: "Far", Start: now.Add(30 * 24 * time.Hour), End: now.Add(31 * 24 * time.Hour)}))

	src := NewEventSource(store, 24*time.Hour)
	src.now = func() time.Time { return now }

	items, err := src.Produce(ctx, Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Standup", "Review"}, titles(items))
	assert.Contains(t, items[0].Subtitle, "Room 4")
	assert.Equal(t, "https://meet/x", items[1].Exec)

	items, err = src.Produce(ctx, Request{Keyword: "rev"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Review"}, titles(items))

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
