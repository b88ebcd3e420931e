package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/runger/flare/internal/errs"
)

// keywordPlaceholder is substituted with the (escaped) keyword in templates.
const keywordPlaceholder = "{keyword}"

// maxSuggestions caps the suggestion tiles added by one request.
const maxSuggestions = 5

// WebSource turns the keyword into a search-engine URL. With a suggestion
// URL configured it also fetches OpenSearch suggestions, which is network
// work and belongs in an async source.
type WebSource struct {
	engine     string
	template   string
	suggestURL string

	client  *resty.Client
	limiter *rate.Limiter
}

// NewWebSource returns a WebSource. client may be nil when suggestURL is empty.
func NewWebSource(engine, template, suggestURL string, client *resty.Client) *WebSource {
	return &WebSource{
		engine:     engine,
		template:   template,
		suggestURL: suggestURL,
		client:     client,
		// Typing produces a request per round; keep the endpoint from
		// throttling us.
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 2),
	}
}

// NewHTTPClient returns the resty client shared by web sources.
func NewHTTPClient() *resty.Client {
	return resty.New().
		SetTimeout(5*time.Second).
		SetHeader("User-Agent", "flare/1.0").
		SetHeader("Accept", "application/json")
}

// URL returns the search URL for keyword.
func (w *WebSource) URL(keyword string) string {
	return strings.ReplaceAll(w.template, keywordPlaceholder, url.QueryEscape(keyword))
}

func (w *WebSource) Produce(ctx context.Context, req Request) ([]Item, error) {
	keyword := strings.TrimSpace(req.Keyword)
	items := []Item{{
		Title:    keyword,
		Subtitle: "Search " + w.engine,
		Text:     keyword,
		Exec:     w.URL(keyword),
	}}
	if w.suggestURL == "" || w.client == nil || keyword == "" {
		return items, nil
	}

	suggestions, err := w.fetchSuggestions(ctx, keyword)
	if err != nil {
		return items, err
	}
	for _, s := range suggestions {
		items = append(items, Item{
			Title:    s,
			Subtitle: w.engine + " suggestion",
			Exec:     w.URL(s),
		})
	}
	return items, nil
}

// fetchSuggestions queries an OpenSearch suggestions endpoint, which answers
// with ["query", ["suggestion", ...], ...].
func (w *WebSource) fetchSuggestions(ctx context.Context, keyword string) ([]string, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.Timeout, "suggestion request canceled", err)
	}

	endpoint := strings.ReplaceAll(w.suggestURL, keywordPlaceholder, url.QueryEscape(keyword))
	resp, err := w.client.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		return nil, errs.Wrap(errs.Network, "failed to fetch suggestions", err)
	}
	if resp.IsError() {
		return nil, errs.New(errs.Network, "failed to fetch suggestions", fmt.Sprintf("status %d", resp.StatusCode()))
	}

	var payload []any
	if err := sonic.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, errs.Wrap(errs.Deserialize, "malformed suggestion response", err)
	}
	if len(payload) < 2 {
		return nil, nil
	}
	raw, ok := payload[1].([]any)
	if !ok {
		return nil, errs.New(errs.Deserialize, "malformed suggestion response", "second element is not a list")
	}

	out := make([]string, 0, maxSuggestions)
	for _, v := range raw {
		s, ok := v.(string)
		if !ok || s == "" || strings.EqualFold(s, keyword) {
			continue
		}
		out = append(out, s)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out, nil
}
