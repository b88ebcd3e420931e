package source

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/runger/flare/internal/config"
	"github.com/runger/flare/internal/errs"
)

// DefaultAsyncTimeout bounds an async source task when neither the record
// nor the registry options set one.
const DefaultAsyncTimeout = 2 * time.Second

// defaultEventLookahead is how far ahead event sources look.
const defaultEventLookahead = 7 * 24 * time.Hour

// Registry is the ordered, immutable set of configured sources.
type Registry struct {
	sources     []*Source
	byName      map[string]*Source
	diagnostics *errs.Diagnostics
	closers     []func() error
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	catalog        map[string]string
	clipboard      ClipboardReader
	runner         Runner
	httpClient     *resty.Client
	defaultTimeout time.Duration
	eventsDB       string
	logger         *zap.Logger
}

// WithAppCatalog merges desktop applications (name -> exec) into app sources.
func WithAppCatalog(catalog map[string]string) Option {
	return func(o *loadOptions) { o.catalog = catalog }
}

// WithClipboard replaces the system clipboard reader.
func WithClipboard(r ClipboardReader) Option {
	return func(o *loadOptions) { o.clipboard = r }
}

// WithRunner replaces the subprocess runner used by exec-backed sources.
func WithRunner(r Runner) Option {
	return func(o *loadOptions) { o.runner = r }
}

// WithHTTPClient sets the client used by web suggestion requests.
func WithHTTPClient(c *resty.Client) Option {
	return func(o *loadOptions) { o.httpClient = c }
}

// WithDefaultTimeout sets the async timeout for records without timeout_ms.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *loadOptions) {
		if d > 0 {
			o.defaultTimeout = d
		}
	}
}

// WithEventsDatabase sets the database used by event records without a
// "database" argument.
func WithEventsDatabase(path string) Option {
	return func(o *loadOptions) { o.eventsDB = path }
}

// WithLogger sets the logger for load diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *loadOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Load builds a Registry from parsed config records. Records that cannot be
// built are skipped and reported through Diagnostics; Load itself never fails.
// Sources are ordered ascending by priority, ties kept in record order.
func Load(records []config.SourceRecord, opts ...Option) *Registry {
	o := loadOptions{
		clipboard:      SystemClipboard{},
		runner:         ExecRunner{},
		defaultTimeout: DefaultAsyncTimeout,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		byName:      make(map[string]*Source, len(records)),
		diagnostics: &errs.Diagnostics{},
	}
	for i, rec := range records {
		src, err := r.build(rec, &o)
		if err != nil {
			e := errs.New(errs.InvalidSource, fmt.Sprintf("source %d (%s) skipped", i, rec.Name), err.Error()).Warning()
			r.diagnostics.Add(e)
			o.logger.Warn("skipping source", zap.Int("index", i), zap.String("name", rec.Name),
				zap.String("type", rec.Type), zap.Error(err))
			continue
		}
		if _, dup := r.byName[src.Name]; dup {
			r.diagnostics.Add(errs.New(errs.InvalidSource, "duplicate source name", src.Name).Warning())
			o.logger.Warn("duplicate source name", zap.String("name", src.Name))
			continue
		}
		r.byName[src.Name] = src
		r.sources = append(r.sources, src)
	}

	sort.SliceStable(r.sources, func(i, j int) bool {
		return r.sources[i].Priority < r.sources[j].Priority
	})
	o.logger.Debug("sources loaded", zap.Int("count", len(r.sources)),
		zap.Int("skipped", r.diagnostics.Len()))
	return r
}

// NewRegistry builds a Registry from already constructed sources, ordered
// the same way Load orders them. Duplicate names are reported as diagnostics.
func NewRegistry(sources ...*Source) *Registry {
	r := &Registry{
		byName:      make(map[string]*Source, len(sources)),
		diagnostics: &errs.Diagnostics{},
	}
	for _, s := range sources {
		if _, dup := r.byName[s.Name]; dup {
			r.diagnostics.Add(errs.New(errs.InvalidSource, "duplicate source name", s.Name))
			continue
		}
		r.byName[s.Name] = s
		r.sources = append(r.sources, s)
	}
	sort.SliceStable(r.sources, func(i, j int) bool {
		return r.sources[i].Priority < r.sources[j].Priority
	})
	return r
}

func (r *Registry) build(rec config.SourceRecord, o *loadOptions) (*Source, error) {
	if strings.TrimSpace(rec.Name) == "" {
		return nil, fmt.Errorf("missing name")
	}
	if rec.Priority < 0 {
		return nil, fmt.Errorf("negative priority %v", rec.Priority)
	}

	meta := Source{
		Name:            rec.Name,
		Alias:           rec.Alias,
		Method:          rec.Method,
		Priority:        rec.Priority,
		Home:            rec.Home,
		Async:           rec.Async,
		KeywordRequired: rec.KeywordRequired,
		Timeout:         o.defaultTimeout,
		Variant:         Variant(rec.Type),
	}
	if rec.TimeoutMs > 0 {
		meta.Timeout = time.Duration(rec.TimeoutMs) * time.Millisecond
	}

	var p Producer
	switch meta.Variant {
	case VariantApp:
		apps := argStringMap(rec.Args, "apps")
		for name, exec := range o.catalog {
			if _, ok := apps[name]; !ok {
				apps[name] = exec
			}
		}
		if err := checkExecs(apps); err != nil {
			return nil, err
		}
		p = NewAppSource(apps)
		meta.Method = withDefault(meta.Method, MethodAppLauncher)

	case VariantCommand:
		commands := argStringMap(rec.Args, "commands")
		if len(commands) == 0 {
			return nil, fmt.Errorf("command source needs a commands map")
		}
		if err := checkExecs(commands); err != nil {
			return nil, err
		}
		p = NewCommandSource(commands)
		meta.Method = withDefault(meta.Method, MethodCommand)

	case VariantWeb:
		template := argString(rec.Args, "url")
		if !strings.Contains(template, keywordPlaceholder) {
			return nil, fmt.Errorf("web source url must contain %s", keywordPlaceholder)
		}
		engine := withDefault(argString(rec.Args, "engine"), rec.Name)
		suggest := argString(rec.Args, "suggest_url")
		var client *resty.Client
		if suggest != "" {
			client = o.httpClient
			if client == nil {
				client = NewHTTPClient()
				o.httpClient = client
			}
		}
		p = NewWebSource(engine, template, suggest, client)
		meta.Method = withDefault(meta.Method, MethodWebLauncher)

	case VariantCalc:
		p = CalcSource{}
		meta.Method = withDefault(meta.Method, MethodCopy)

	case VariantBulkText:
		exec, args, err := splitExec(rec.Args)
		if err != nil {
			return nil, err
		}
		p = NewBulkTextSource(exec, args, o.runner)
		meta.Method = withDefault(meta.Method, MethodPrint)

	case VariantClipboard:
		p = NewClipboardSource(o.clipboard)
		meta.Method = withDefault(meta.Method, MethodCopy)

	case VariantEvent:
		path := withDefault(argString(rec.Args, "database"), o.eventsDB)
		if path == "" {
			return nil, fmt.Errorf("event source needs a database path")
		}
		lookahead, err := argDuration(rec.Args, "lookahead", defaultEventLookahead)
		if err != nil {
			return nil, err
		}
		src := NewEventSourceAt(path, lookahead)
		r.closers = append(r.closers, src.Close)
		p = src
		meta.Method = withDefault(meta.Method, MethodWebLauncher)

	case VariantMedia:
		p = NewMediaSource(argString(rec.Args, "player"), o.runner)
		meta.Method = withDefault(meta.Method, MethodCommand)

	case VariantProcess:
		p = NewProcessSource(o.runner)
		meta.Method = withDefault(meta.Method, MethodKill)

	default:
		return nil, fmt.Errorf("unknown source type %q", rec.Type)
	}

	return New(meta, p), nil
}

// splitExec reads the "exec" argument, which may be a full command line, and
// appends any explicit "args".
func splitExec(args map[string]any) (string, []string, error) {
	parts, err := shlex.Split(argString(args, "exec"))
	if err != nil {
		return "", nil, fmt.Errorf("exec: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("missing exec")
	}
	return parts[0], append(parts[1:], argStrings(args, "args")...), nil
}

func checkExecs(m map[string]string) error {
	for _, name := range sortedKeys(m) {
		if _, err := shlex.Split(m[name]); err != nil {
			return fmt.Errorf("exec for %q: %w", name, err)
		}
	}
	return nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Sources returns the sources in dispatch order. The slice must not be modified.
func (r *Registry) Sources() []*Source {
	return r.sources
}

// Get returns the source with the given name.
func (r *Registry) Get(name string) (*Source, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Aliases lists configured aliases in dispatch order.
func (r *Registry) Aliases() []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range r.sources {
		if s.Alias != "" && !seen[s.Alias] {
			seen[s.Alias] = true
			out = append(out, s.Alias)
		}
	}
	return out
}

// Len returns the number of loaded sources.
func (r *Registry) Len() int { return len(r.sources) }

// Diagnostics returns the warnings collected while loading.
func (r *Registry) Diagnostics() []*errs.Error {
	return r.diagnostics.All()
}

// Close releases resources held by sources (event databases).
func (r *Registry) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
