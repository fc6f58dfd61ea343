package crawler

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"ketohub/internal/errors"
	"ketohub/internal/logger"
	"ketohub/internal/processor"
	"ketohub/internal/progress"
	"ketohub/internal/sites"
)

// ruleKey stores the index of the rule that produced a request. Start URLs
// carry startRule.
const (
	ruleKey   = "rule"
	startRule = -1
)

// PageProcessor handles recipe pages reached through a callback rule.
type PageProcessor interface {
	Process(ctx context.Context, in processor.Input) (*processor.Result, error)
}

// Options controls the crawl engine.
type Options struct {
	UserAgent   string
	Timeout     time.Duration
	Parallelism int
	Delay       time.Duration
	ObeyRobots  bool
}

// Crawler walks one site by its rules and hands recipe pages to a PageProcessor
type Crawler struct {
	site      *sites.Site
	processor PageProcessor
	reporter  *progress.ProgressReporter
	logger    *logger.Logger
	opts      Options
}

// NewCrawler creates a new Crawler for site
func NewCrawler(site *sites.Site, proc PageProcessor, reporter *progress.ProgressReporter, log *logger.Logger, opts Options) *Crawler {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	if reporter == nil {
		reporter = progress.NewProgressReporter(log, site.ID)
	}
	return &Crawler{
		site:      site,
		processor: proc,
		reporter:  reporter,
		logger:    log,
		opts:      opts,
	}
}

func (c *Crawler) newCollector(ctx context.Context) (*colly.Collector, error) {
	col := colly.NewCollector(
		colly.Async(true),
		colly.StdlibContext(ctx),
		colly.DetectCharset(),
	)
	if c.opts.UserAgent != "" {
		col.UserAgent = c.opts.UserAgent
	}
	col.IgnoreRobotsTxt = !c.opts.ObeyRobots
	col.SetRequestTimeout(c.opts.Timeout)

	if err := col.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.opts.Parallelism,
		Delay:       c.opts.Delay,
	}); err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationError, "invalid crawl limits")
	}
	return col, nil
}

// Run crawls the site from its start URLs and blocks until every request has
// finished or ctx is cancelled.
func (c *Crawler) Run(ctx context.Context) error {
	col, err := c.newCollector(ctx)
	if err != nil {
		return err
	}

	col.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if !c.site.Allows(r.URL.Hostname()) {
			c.logger.Debug("Skipping offsite request", map[string]interface{}{"url": r.URL.String()})
			r.Abort()
			return
		}
		c.logger.Debug("Fetching page", map[string]interface{}{"url": r.URL.String()})
	})

	col.OnResponse(func(r *colly.Response) {
		c.handlePage(ctx, col, r)
	})

	col.OnError(func(r *colly.Response, err error) {
		pageURL := r.Request.URL.String()
		if rule, ok := c.ruleFor(r.Ctx); ok && rule.Callback {
			c.reporter.RecordFailure(processor.KindFetch)
		}
		c.logger.Warn("Failed to fetch page", map[string]interface{}{
			"url":    pageURL,
			"status": r.StatusCode,
			"kind":   processor.KindFetch,
			"error":  err,
		})
	})

	c.logger.Info("Starting crawl", map[string]interface{}{
		"site":       c.site.ID,
		"start_urls": c.site.StartURLs,
	})

	queued := 0
	for _, u := range c.site.StartURLs {
		if c.enqueue(col, u, startRule, "") {
			queued++
		}
	}
	col.Wait()
	c.reporter.Complete()

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CrawlerError, "crawl interrupted").WithContext("site", c.site.ID)
	}
	if queued == 0 && len(c.site.StartURLs) > 0 {
		return errors.New(errors.CrawlerError, "no start url could be requested").WithContext("site", c.site.ID)
	}
	return nil
}

func (c *Crawler) handlePage(ctx context.Context, col *colly.Collector, r *colly.Response) {
	pageURL := r.Request.URL.String()
	if !isHTML(r) {
		c.logger.Debug("Skipping non-HTML response", map[string]interface{}{"url": pageURL})
		return
	}

	page, err := sites.NewPage(pageURL, r.Body)
	if err != nil {
		c.logger.Warn("Failed to parse page", map[string]interface{}{"url": pageURL, "error": err})
		return
	}

	rule, fromRule := c.ruleFor(r.Ctx)
	if fromRule && rule.Callback {
		c.processPage(ctx, r, page)
	}
	if !fromRule || rule.Follow {
		c.followLinks(col, r, page)
	}
}

func (c *Crawler) processPage(ctx context.Context, r *colly.Response, page *sites.Page) {
	res, err := c.processor.Process(ctx, processor.Input{
		URL:     page.URL,
		Body:    r.Body,
		Referer: r.Request.Headers.Get("Referer"),
		Page:    page,
	})
	if err != nil {
		c.reporter.RecordFailure(processor.FailureKind(err))
		return
	}
	c.reporter.RecordSuccess()
	c.logger.Debug("Recipe stored", map[string]interface{}{"url": page.URL, "key": string(res.Key)})
}

// followLinks queues links by rule order. A link claimed by an earlier rule
// is not considered again for later rules.
func (c *Crawler) followLinks(col *colly.Collector, r *colly.Response, page *sites.Page) {
	seen := make(map[string]bool)
	for i, rule := range c.site.Rules {
		links, err := page.Links(rule.RestrictXPath)
		if err != nil {
			c.logger.Error("Invalid restrict path", map[string]interface{}{
				"site":  c.site.ID,
				"xpath": rule.RestrictXPath,
				"error": err,
			})
			continue
		}
		for _, href := range links {
			link := absolute(r.Request, href)
			if link == "" || seen[link] || !rule.Matches(link) {
				continue
			}
			seen[link] = true
			c.enqueue(col, link, i, page.URL)
		}
	}
}

func (c *Crawler) enqueue(col *colly.Collector, link string, rule int, referer string) bool {
	cctx := colly.NewContext()
	cctx.Put(ruleKey, rule)

	var hdr http.Header
	if referer != "" {
		hdr = http.Header{"Referer": []string{referer}}
	}

	err := col.Request(http.MethodGet, link, nil, cctx, hdr)
	if err == nil {
		return true
	}

	var visited *colly.AlreadyVisitedError
	switch {
	case stderrors.As(err, &visited):
	case stderrors.Is(err, colly.ErrRobotsTxtBlocked):
		c.logger.Debug("Blocked by robots.txt", map[string]interface{}{"url": link})
	default:
		c.logger.Warn("Failed to queue request", map[string]interface{}{"url": link, "error": err})
	}
	return false
}

func (c *Crawler) ruleFor(ctx *colly.Context) (sites.Rule, bool) {
	if ctx == nil {
		return sites.Rule{}, false
	}
	idx, ok := ctx.GetAny(ruleKey).(int)
	if !ok || idx < 0 || idx >= len(c.site.Rules) {
		return sites.Rule{}, false
	}
	return c.site.Rules[idx], true
}

func absolute(req *colly.Request, href string) string {
	link := req.AbsoluteURL(href)
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func isHTML(r *colly.Response) bool {
	ct := strings.ToLower(r.Headers.Get("Content-Type"))
	if ct == "" {
		ct = strings.ToLower(http.DetectContentType(r.Body))
	}
	return strings.Contains(ct, "html")
}
