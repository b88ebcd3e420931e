// Package tui is the terminal front-end of the launcher. Its Model is the
// launcher window and results surface, and its Update loop hosts the
// cooperative runloop, so every queue and aggregator mutation happens inside
// Update.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/runger/flare/internal/app"
	"github.com/runger/flare/internal/errs"
	"github.com/runger/flare/internal/runloop"
	"github.com/runger/flare/internal/search"
	"github.com/runger/flare/internal/source"
)

// defaultDebounce is used when Options.Debounce is zero.
const defaultDebounce = 60 * time.Millisecond

// pipeSource names the items built from piped content.
const pipeSource = "stdin"

var (
	_ app.Window  = (*Model)(nil)
	_ app.Surface = (*Model)(nil)
)

// Activator performs an item's action.
type Activator interface {
	Run(ctx context.Context, item source.Item) error
}

// Options configures the Model.
type Options struct {
	// Daemon keeps the program running after Esc or an activation; the
	// window hides until the next Show.
	Daemon     bool
	Debounce   time.Duration
	MaxResults int
	Logger     *zap.Logger
}

type (
	readyMsg    struct{}
	wakeMsg     struct{}
	debounceMsg struct{ id uint64 }
	activateMsg struct {
		item source.Item
		err  error
	}
)

// Model is the bubbletea model of the launcher. It is used by pointer; every
// method runs on the bubbletea update goroutine.
type Model struct {
	app    *app.Context
	loop   *runloop.Loop
	runner Activator
	opts   Options
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	input      textinput.Model
	lastQuery  string
	items      []source.Item
	round      uint64 // round of the results shown
	selection  int
	piped      []source.Item
	raw        string
	errMsg     *errs.Error
	obfuscated bool
	visible    bool
	inputOnly  bool

	width  int
	height int

	debounceID uint64
	result     *source.Item
	quitting   bool
}

// New returns a Model bound to appCtx. loop must be the scheduler appCtx was
// built with; the Model hosts it.
func New(appCtx *app.Context, loop *runloop.Loop, runner Activator, opts Options) *Model {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 12
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "Search"
	ti.CharLimit = 512
	ti.Focus()

	ctx, cancel := context.WithCancel(context.Background())
	return &Model{
		app:       appCtx,
		loop:      loop,
		runner:    runner,
		opts:      opts,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		input:     ti,
		selection: -1,
		visible:   true,
	}
}

// Result returns the item chosen for printing after the program exits.
// Items of method "print" are held back so the output lands on the terminal
// after the alternate screen is gone.
func (m *Model) Result() (source.Item, bool) {
	if m.result == nil {
		return source.Item{}, false
	}
	return *m.result, true
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return readyMsg{} },
		m.waitForWork(),
		textinput.Blink,
	)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case readyMsg:
		m.app.Queue.RegisterWindow(m)
		m.app.Queue.RegisterSurface(m)
		m.dispatch()
		return m, nil

	case wakeMsg:
		m.loop.RunPending()
		return m, m.waitForWork()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case debounceMsg:
		if msg.id != m.debounceID {
			return m, nil
		}
		m.dispatch()
		return m, nil

	case activateMsg:
		if msg.err != nil {
			m.logger.Warn("action failed", zap.String("title", msg.item.Title), zap.Error(msg.err))
			m.ShowError(asError(msg.err))
			return m, nil
		}
		return m, m.finish()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, m.quit()
	}
	if !m.visible {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		return m, m.finish()
	case "enter":
		if m.selection >= 0 && m.selection < len(m.items) {
			return m, m.activate(m.items[m.selection])
		}
		return m, nil
	case "up", "ctrl+p":
		if m.selection > 0 {
			m.selection--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.selection < len(m.visibleItems())-1 {
			m.selection++
		}
		return m, nil
	case "backspace":
		if m.input.Value() == "" && m.piped == nil && m.app.Mode() != source.ModeAll {
			m.SwitchMode(source.ModeAll)
			return m, nil
		}
	case "alt+1", "alt+2", "alt+3", "alt+4", "alt+5":
		n := int(msg.String()[len("alt+")] - '0')
		for _, it := range m.items {
			if it.Shortcut == n {
				return m, m.activate(it)
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == m.lastQuery {
		return m, cmd
	}
	m.lastQuery = m.input.Value()
	return m, tea.Batch(cmd, m.startDebounce())
}

// waitForWork delivers a wakeMsg once functions are posted to the loop.
func (m *Model) waitForWork() tea.Cmd {
	loop := m.loop
	return func() tea.Msg {
		select {
		case <-loop.Wake():
			return wakeMsg{}
		case <-loop.Stopped():
			return nil
		}
	}
}

func (m *Model) startDebounce() tea.Cmd {
	m.debounceID++
	id := m.debounceID
	return tea.Tick(m.opts.Debounce, func(time.Time) tea.Msg {
		return debounceMsg{id: id}
	})
}

// dispatch searches the current input. Piped content is filtered locally
// instead of going to the sources.
func (m *Model) dispatch() {
	text := m.input.Value()
	if m.piped != nil {
		m.show(search.Rank(text, m.piped))
		return
	}
	prevMode := m.app.Mode()
	q, _ := m.app.Search(m.ctx, text)
	if q.Mode != prevMode && q.Text != text {
		m.input.SetValue(q.Text)
		m.input.CursorEnd()
		m.lastQuery = q.Text
	}
}

func (m *Model) activate(item source.Item) tea.Cmd {
	if item.Method == source.MethodError {
		return nil
	}
	if item.Method == source.MethodPrint && !m.opts.Daemon {
		if _, ok := m.app.Queue.Handles().ReplySocket(); !ok {
			m.result = &item
			return m.quit()
		}
	}
	runner, ctx := m.runner, m.ctx
	return func() tea.Msg {
		return activateMsg{item: item, err: runner.Run(ctx, item)}
	}
}

// finish ends an interaction: a daemon hides and resets, otherwise the
// program quits.
func (m *Model) finish() tea.Cmd {
	if !m.opts.Daemon {
		return m.quit()
	}
	m.visible = false
	m.resetInput()
	m.piped = nil
	m.raw = ""
	m.errMsg = nil
	m.dispatch()
	return nil
}

func (m *Model) quit() tea.Cmd {
	if !m.quitting {
		m.quitting = true
		m.app.Queue.UnregisterWindow()
		m.app.Queue.UnregisterSurface()
		m.app.Dispatcher.Cancel()
		m.cancel()
	}
	return tea.Quit
}

func (m *Model) resetInput() {
	m.input.Reset()
	m.lastQuery = ""
	m.debounceID++
}

// Present implements app.Window.
func (m *Model) Present() {
	m.visible = true
	m.inputOnly = false
	m.input.Focus()
}

// InputOnly implements app.Window.
func (m *Model) InputOnly() {
	m.inputOnly = true
}

// Clear implements app.Surface. It resets the input and shows the home
// results again.
func (m *Model) Clear() {
	m.resetInput()
	m.piped = nil
	m.raw = ""
	m.errMsg = nil
	m.dispatch()
}

// SetObfuscated implements app.Surface.
func (m *Model) SetObfuscated(on bool) {
	m.obfuscated = on
	if on {
		m.input.EchoMode = textinput.EchoPassword
	} else {
		m.input.EchoMode = textinput.EchoNormal
	}
}

// Pipe implements app.Surface. Each non-blank line becomes an item that
// prints itself when chosen.
func (m *Model) Pipe(content string) {
	lines := pipeLines(content)
	m.piped = make([]source.Item, 0, len(lines))
	for _, line := range lines {
		m.piped = append(m.piped, source.Item{
			Source: pipeSource,
			Method: source.MethodPrint,
			Title:  line,
			Exec:   line,
		})
	}
	m.raw = ""
	m.resetInput()
	m.app.Dispatcher.Cancel()
	m.dispatch()
}

// DisplayRaw implements app.Surface.
func (m *Model) DisplayRaw(content string) {
	m.raw = content
}

// SwitchMode implements app.Surface.
func (m *Model) SwitchMode(mode string) {
	m.app.SetMode(mode)
	m.dispatch()
}

// ShowError implements app.Surface.
func (m *Model) ShowError(e *errs.Error) {
	m.errMsg = e
}

// Render implements app.Surface. Source results are ignored while piped
// content is shown.
func (m *Model) Render(round uint64, items []source.Item) {
	if m.piped != nil {
		return
	}
	m.round = round
	m.show(items)
}

func (m *Model) show(items []source.Item) {
	m.items = items
	n := len(m.visibleItems())
	switch {
	case n == 0:
		m.selection = -1
	case m.selection < 0:
		m.selection = 0
	case m.selection >= n:
		m.selection = n - 1
	}
}

func (m *Model) visibleItems() []source.Item {
	if len(m.items) > m.opts.MaxResults {
		return m.items[:m.opts.MaxResults]
	}
	return m.items
}

func asError(err error) *errs.Error {
	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}
	return errs.Wrap(errs.CommandExec, "action failed", err)
}

// --- View rendering ---

var (
	modeStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("237"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	shortcutStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	rawStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.visible {
		return dimStyle.Render("flare is running; `flare show` brings it back")
	}

	var b strings.Builder
	b.WriteString(m.viewInput())
	if m.inputOnly {
		return b.String()
	}
	if m.errMsg != nil {
		b.WriteRune('\n')
		b.WriteString(errorStyle.Render(fit(cleanLine(m.errMsg.Message+": "+m.errMsg.Raw), m.lineWidth())))
	}
	b.WriteRune('\n')
	if m.raw != "" {
		b.WriteString(rawStyle.Render(m.raw))
		return b.String()
	}
	b.WriteString(m.viewList())
	return b.String()
}

func (m *Model) viewInput() string {
	mode := m.app.Mode()
	if m.piped != nil {
		mode = pipeSource
	}
	return modeStyle.Render(" "+mode+" ") + " " + promptStyle.Render("> ") + m.input.View()
}

func (m *Model) viewList() string {
	items := m.visibleItems()
	if len(items) == 0 {
		return dimStyle.Render("No results")
	}

	width := m.lineWidth()
	rows := make([]string, 0, len(items))
	for i, it := range items {
		label := "  "
		if it.Shortcut > 0 {
			label = fmt.Sprintf("%d ", it.Shortcut)
		}
		avail := width - len(label)

		title := cleanLine(it.Title)
		if it.Err != nil {
			title = "! " + title
		}
		title = fit(title, avail)

		style := normalStyle
		if i == m.selection {
			style = selectedStyle
		}
		line := style.Render(title)
		used := displayWidth(title)
		if rest := avail - used - 2; rest > 0 && it.Subtitle != "" {
			sub := fit(cleanLine(it.Subtitle), rest)
			line += style.Render("  ") + dimStyle.Render(sub)
			used += 2 + displayWidth(sub)
		}
		if i == m.selection && used < avail {
			line += style.Render(strings.Repeat(" ", avail-used))
		}
		rows = append(rows, shortcutStyle.Render(label)+line)
	}
	return strings.Join(rows, "\n")
}

func (m *Model) lineWidth() int {
	if m.width > 0 {
		return m.width
	}
	return 80
}
