// Package feeds polls RSS and Atom sources for alert candidates.
package feeds

import (
	"context"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"go.uber.org/zap"
)

// Item is one feed entry reduced to what the alert engine classifies.
type Item struct {
	SourceName string
	SubjectTag string
	Title      string
	Content    string
	Published  time.Time
}

// Text is the title and content joined for keyword matching.
func (i Item) Text() string {
	return i.Title + " " + i.Content
}

type Fetcher interface {
	Fetch(ctx context.Context) ([]Item, error)
}

type Poller struct {
	sources []config.FeedSource
	parser  *gofeed.Parser
	logger  *logger.Logger
	now     func() time.Time
	// maxAge drops entries older than this. Zero keeps everything.
	maxAge time.Duration
}

var _ Fetcher = (*Poller)(nil)

func NewPoller(sources []config.FeedSource, client *http.Client, maxAge time.Duration, log *logger.Logger) *Poller {
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}

	return &Poller{
		sources: sources,
		parser:  parser,
		logger:  log.Named("feeds"),
		now:     time.Now,
		maxAge:  maxAge,
	}
}

// Fetch reads every source. A failing source is logged and skipped; an error
// is returned only when every source failed.
func (p *Poller) Fetch(ctx context.Context) ([]Item, error) {
	items := make([]Item, 0)
	failures := 0

	var lastErr error

	for _, src := range p.sources {
		got, err := p.fetchOne(ctx, src)
		if err != nil {
			failures++
			lastErr = err

			p.logger.Warn("Feed fetch failed", zap.String("source", SourceName(src)), zap.Error(err))

			continue
		}

		items = append(items, got...)
	}

	if len(p.sources) > 0 && failures == len(p.sources) {
		return nil, errors.Wrap(errors.ErrCodeFeedFetchFailed, "every feed source failed", lastErr)
	}

	return items, nil
}

func (p *Poller) fetchOne(ctx context.Context, src config.FeedSource) ([]Item, error) {
	feed, err := p.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFeedFetchFailed, err, "failed to parse feed %s", SourceName(src))
	}

	name := SourceName(src)
	out := make([]Item, 0, len(feed.Items))

	for _, entry := range feed.Items {
		if entry == nil || strings.TrimSpace(entry.Title) == "" {
			continue
		}

		published := p.now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		if p.maxAge > 0 && p.now().Sub(published) > p.maxAge {
			continue
		}

		content := entry.Description
		if content == "" {
			content = entry.Content
		}

		out = append(out, Item{
			SourceName: name,
			SubjectTag: src.SubjectTag,
			Title:      strings.TrimSpace(StripHTML(entry.Title)),
			Content:    strings.TrimSpace(StripHTML(content)),
			Published:  published,
		})
	}

	return out, nil
}

// SourceName is the configured display name, or the feed host without "www.".
// It is never a URL.
func SourceName(src config.FeedSource) string {
	if src.Name != "" {
		return src.Name
	}

	u, err := url.Parse(src.URL)
	if err != nil || u.Host == "" {
		return "feed"
	}

	return strings.TrimPrefix(u.Hostname(), "www.")
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// StripHTML removes tags and entities and collapses whitespace.
func StripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)

	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
