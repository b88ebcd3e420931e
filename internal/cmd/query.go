package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/runger/flare/internal/app"
	"github.com/runger/flare/internal/runloop"
	"github.com/runger/flare/internal/search"
	"github.com/runger/flare/internal/source"
)

var (
	queryMode  string
	queryLimit int
	queryJSON  bool
)

var queryCmd = &cobra.Command{
	Use:     "query <text>",
	Short:   "Search all sources once and print the ranked results",
	GroupID: groupLauncher,
	Long: `Run one search without the terminal UI and print the results once every
async source has answered or timed out.

Examples:
  flare query firefox
  flare query "app fire"
  flare query --mode g golang --json`,
	Args: cobra.ArbitraryArgs,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryMode, "mode", "m", "", "search in the mode of this alias")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "maximum results to print (0 uses search.max_results)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print results as JSON")
}

// queryResult is the JSON shape of one printed result.
type queryResult struct {
	Shortcut int     `json:"shortcut,omitempty"`
	Source   string  `json:"source"`
	Method   string  `json:"method"`
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle,omitempty"`
	Exec     string  `json:"exec,omitempty"`
	Score    float64 `json:"score"`
	Error    string  `json:"error,omitempty"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	loop := runloop.New()
	go loop.Run(ctx)

	appCtx := app.New(cfg, loop, app.Options{Logger: logger, Mode: queryMode})
	defer appCtx.Close()

	items, err := searchOnce(ctx, loop, appCtx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	limit := queryLimit
	if limit <= 0 {
		limit = cfg.Search.MaxResults
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	if queryJSON {
		return printJSON(cmd.OutOrStdout(), items)
	}
	return printTable(cmd.OutOrStdout(), items)
}

// searchOnce dispatches input on loop and waits for the round to complete.
// Async results are posted before their task ends, so reading the items
// after Done sees every contribution.
func searchOnce(ctx context.Context, loop *runloop.Loop, appCtx *app.Context, input string) ([]source.Item, error) {
	var pending *search.Pending
	if err := loop.Do(ctx, func() { _, pending = appCtx.Search(ctx, input) }); err != nil {
		return nil, err
	}
	select {
	case <-pending.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var items []source.Item
	if err := loop.Do(ctx, func() { items = appCtx.Aggregator.Items() }); err != nil {
		return nil, err
	}
	return items, nil
}

func printJSON(w io.Writer, items []source.Item) error {
	out := make([]queryResult, 0, len(items))
	for _, it := range items {
		r := queryResult{
			Shortcut: it.Shortcut,
			Source:   it.Source,
			Method:   it.Method,
			Title:    it.Title,
			Subtitle: it.Subtitle,
			Exec:     it.Exec,
			Score:    it.Score,
		}
		if it.Err != nil {
			r.Error = it.Err.Error()
		}
		out = append(out, r)
	}
	data, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printTable(w io.Writer, items []source.Item) error {
	if len(items) == 0 {
		fmt.Fprintln(w, "No results")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, it := range items {
		key := " "
		if it.Shortcut > 0 {
			key = fmt.Sprint(it.Shortcut)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", key, it.Title, colorDim+it.Subtitle+colorReset, it.Source)
	}
	return tw.Flush()
}
