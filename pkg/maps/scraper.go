// Package maps drives a headless browser over map search results and
// extracts the business listings for an area query.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Listing is one business card scraped from the results feed.
type Listing struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone"`
	Website     string   `json:"website"`
	PlaceURL    string   `json:"placeUrl"`
	RatingLabel string   `json:"ratingLabel"`
	Rating      *float64 `json:"-"`
	ReviewCount int      `json:"-"`
	PlaceID     string   `json:"-"`
}

// Options configures the browser session.
type Options struct {
	Headless     bool
	Timeout      time.Duration
	MaxResults   int
	ScrollRounds int
	ScrollDelay  time.Duration
	UserAgent    string
}

// Scraper owns a browser allocator reused across area searches.
type Scraper struct {
	opts        Options
	allocator   context.Context
	allocCancel context.CancelFunc
}

func NewScraper(opts Options) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 120
	}
	if opts.ScrollRounds <= 0 {
		opts.ScrollRounds = 40
	}
	if opts.ScrollDelay <= 0 {
		opts.ScrollDelay = 1500 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("lang", "cs-CZ"),
	)
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	allocator, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	return &Scraper{opts: opts, allocator: allocator, allocCancel: allocCancel}
}

// Close shuts the browser allocator down.
func (s *Scraper) Close() {
	s.allocCancel()
}

// collectListingsJS pulls every result card currently rendered in the
// feed. Selectors track the current map results markup and will need
// maintenance when it changes.
const collectListingsJS = `
(() => {
	const cards = document.querySelectorAll('div[role="feed"] a[href*="/maps/place/"]');
	const out = [];
	const seen = new Set();
	for (const card of cards) {
		const href = card.href || '';
		if (seen.has(href)) continue;
		seen.add(href);
		const container = card.closest('div[jsaction]') || card.parentElement;
		const rating = container ? container.querySelector('span[role="img"]') : null;
		out.push({
			name: card.getAttribute('aria-label') || '',
			placeUrl: href,
			ratingLabel: rating ? (rating.getAttribute('aria-label') || '') : '',
			address: '',
			phone: '',
			website: '',
		});
	}
	return JSON.stringify(out);
})()`

const scrollFeedJS = `
(() => {
	const feed = document.querySelector('div[role="feed"]');
	if (!feed) return 0;
	feed.scrollTop = feed.scrollHeight;
	return feed.querySelectorAll('a[href*="/maps/place/"]').length;
})()`

// Search scrolls through the results for "keyword area" and returns the
// listings found, capped at MaxResults.
func (s *Scraper) Search(ctx context.Context, keyword, area string) ([]Listing, error) {
	query := strings.TrimSpace(keyword + " " + area)
	searchURL := "https://www.google.com/maps/search/" + url.QueryEscape(query)

	taskCtx, taskCancel := chromedp.NewContext(s.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, s.opts.Timeout)
	defer cancel()

	log := zap.L().With(zap.String("component", "maps"), zap.String("query", query))
	log.Info("searching area")

	err := chromedp.Run(taskCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(s.opts.UserAgent).Do(ctx)
		}),
		chromedp.Navigate(searchURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "maps: navigate %s", searchURL)
	}

	if err := s.scrollFeed(taskCtx, log); err != nil {
		return nil, err
	}

	var raw string
	if err := chromedp.Run(taskCtx, chromedp.Evaluate(collectListingsJS, &raw)); err != nil {
		return nil, eris.Wrap(err, "maps: collect listings")
	}

	listings, err := ParseListings(raw)
	if err != nil {
		return nil, err
	}
	if len(listings) > s.opts.MaxResults {
		listings = listings[:s.opts.MaxResults]
	}

	log.Info("area search finished", zap.Int("listings", len(listings)))
	return listings, nil
}

// scrollFeed keeps scrolling the results feed until the listing count
// stops growing for three rounds or limits are hit.
func (s *Scraper) scrollFeed(ctx context.Context, log *zap.Logger) error {
	lastCount, stale := 0, 0
	for round := 0; round < s.opts.ScrollRounds; round++ {
		var count int
		err := chromedp.Run(ctx,
			chromedp.Evaluate(scrollFeedJS, &count),
			chromedp.Sleep(s.opts.ScrollDelay),
		)
		if err != nil {
			return eris.Wrap(err, "maps: scroll feed")
		}

		if count >= s.opts.MaxResults {
			log.Debug("scroll reached max results", zap.Int("count", count))
			return nil
		}
		if count == lastCount {
			stale++
			if stale >= 3 {
				log.Debug("scroll reached end of feed", zap.Int("count", count), zap.Int("rounds", round+1))
				return nil
			}
		} else {
			stale = 0
		}
		lastCount = count
	}
	return nil
}

// ParseListings decodes the JSON payload from the page and fills the
// derived fields.
func ParseListings(raw string) ([]Listing, error) {
	var listings []Listing
	if err := json.Unmarshal([]byte(raw), &listings); err != nil {
		return nil, eris.Wrap(err, "maps: decode listings")
	}

	out := listings[:0]
	for _, l := range listings {
		if l.Name == "" {
			continue
		}
		l.PlaceID = PlaceID(l.PlaceURL)
		l.Rating, l.ReviewCount = parseRatingLabel(l.RatingLabel)
		out = append(out, l)
	}
	return out, nil
}

var placeIDRe = regexp.MustCompile(`!19s([^!?]+)|/maps/place/[^/]+/data=[^?]*!1s([^!?]+)`)

// PlaceID extracts the opaque place identifier from a result URL so
// revisits of the same listing dedupe exactly. Empty when the URL
// carries none.
func PlaceID(placeURL string) string {
	m := placeIDRe.FindStringSubmatch(placeURL)
	if m == nil {
		return ""
	}
	for _, group := range m[1:] {
		if group != "" {
			return group
		}
	}
	return ""
}

var ratingLabelRe = regexp.MustCompile(`(\d+[.,]\d+)[^\d]+([\d\s\x{00a0},]+)`)

// parseRatingLabel reads labels like "4,6 hvězdičky 128 recenzí" or
// "4.6 stars 1,204 Reviews". Both fields are optional in the feed.
func parseRatingLabel(label string) (*float64, int) {
	m := ratingLabelRe.FindStringSubmatch(label)
	if m == nil {
		return nil, 0
	}

	ratingStr := strings.ReplaceAll(m[1], ",", ".")
	rating, err := strconv.ParseFloat(ratingStr, 64)
	if err != nil {
		return nil, 0
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m[2])
	count, _ := strconv.Atoi(digits)
	return &rating, count
}

// SearchQuery builds the keyword used for an area scrape, e.g.
// ("restaurace", "Praha 1") -> "restaurace Praha 1".
func SearchQuery(niche, area string) string {
	return fmt.Sprintf("%s %s", niche, area)
}
