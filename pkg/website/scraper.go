// Package website fetches business websites and extracts contact
// details plus a 0-100 quality score used by lead prioritization.
package website

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var (
	emailRe     = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	instagramRe = regexp.MustCompile(`instagram\.com/([^/?#]+)`)
	facebookRe  = regexp.MustCompile(`(?:facebook|fb)\.com/([^/?#]+)`)
	copyrightRe = regexp.MustCompile(`©\s*(\d{4})|\b(20\d{2})\b`)

	// Obfuscations common on Czech small-business sites.
	deobfuscator = strings.NewReplacer(
		"[at]", "@", "(at)", "@", "[AT]", "@", "(AT)", "@",
		"[dot]", ".", "(dot)", ".", "[DOT]", ".", "(DOT)", ".",
		" @ ", "@", "@ ", "@", " @", "@",
	)
)

// Result holds everything extracted from one site.
type Result struct {
	Email            string
	Instagram        string
	Facebook         string
	QualityScore     int
	HasHTTPS         bool
	MobileResponsive bool
	CopyrightYear    int
}

// Options configures the scraper.
type Options struct {
	Timeout        time.Duration
	RequestsPerSec float64
	MaxBodyKB      int
	UserAgent      string
}

// Scraper fetches websites politely: one client, per-scraper rate
// limit, bounded response bodies.
type Scraper struct {
	client    *http.Client
	limiter   *rate.Limiter
	maxBody   int64
	userAgent string
	now       func() time.Time
}

func NewScraper(opts Options) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 1
	}
	if opts.MaxBodyKB <= 0 {
		opts.MaxBodyKB = 512
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Scraper{
		client:    &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		maxBody:   int64(opts.MaxBodyKB) * 1024,
		userAgent: opts.UserAgent,
		now:       time.Now,
	}
}

// Scrape fetches url and extracts contacts and quality signals.
func (s *Scraper) Scrape(ctx context.Context, url string) (*Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "website: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "website: build request %s", url)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Language", "cs,en-US;q=0.7,en;q=0.3")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "website: fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("website: fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, eris.Wrapf(err, "website: read body %s", url)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, eris.Wrapf(err, "website: parse %s", url)
	}

	result := s.extract(doc, string(body), url)
	zap.L().Debug("website scraped",
		zap.String("component", "website"),
		zap.String("url", url),
		zap.Int("quality", result.QualityScore),
		zap.Bool("email_found", result.Email != ""))
	return result, nil
}

func (s *Scraper) extract(doc *goquery.Document, rawHTML, url string) *Result {
	result := &Result{HasHTTPS: strings.HasPrefix(url, "https://")}

	result.Email = primaryEmail(collectEmails(doc, rawHTML), Domain(url))
	result.Instagram, result.Facebook = socialLinks(doc)
	s.scoreQuality(doc, result)
	return result
}

// scoreQuality mirrors what a human skimming the site would judge:
// encryption, mobile support, a contact page, freshness, imagery and
// structured markup. Capped at 100.
func (s *Scraper) scoreQuality(doc *goquery.Document, result *Result) {
	score := 0
	if result.HasHTTPS {
		score += 20
	}

	if doc.Find(`meta[name="viewport"]`).Length() > 0 {
		score += 15
		result.MobileResponsive = true
	}

	modernCSS := false
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.ToLower(href)
		if strings.Contains(href, "bootstrap") || strings.Contains(href, "tailwind") {
			modernCSS = true
		}
	})
	if modernCSS {
		score += 10
	}

	if hasContactPage(doc) {
		score += 15
	}

	if year := latestCopyrightYear(doc.Text()); year > 0 {
		result.CopyrightYear = year
		current := s.now().Year()
		switch {
		case year >= current-1:
			score += 20
		case year >= current-3:
			score += 10
		}
	}

	if doc.Find("img").Length() >= 3 {
		score += 10
	}
	if doc.Find("article, section").Length() > 0 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	result.QualityScore = score
}

func collectEmails(doc *goquery.Document, rawHTML string) []string {
	seen := map[string]bool{}

	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexAny(addr, "?&"); i >= 0 {
			addr = addr[:i]
		}
		addr = strings.ToLower(strings.TrimSpace(addr))
		if emailRe.MatchString(addr) {
			seen[addr] = true
		}
	})

	for _, match := range emailRe.FindAllString(deobfuscator.Replace(rawHTML), -1) {
		addr := strings.ToLower(match)
		// Filenames like logo@2x.png match the pattern.
		if strings.HasSuffix(addr, ".png") || strings.HasSuffix(addr, ".jpg") ||
			strings.HasSuffix(addr, ".svg") || strings.HasSuffix(addr, ".webp") {
			continue
		}
		seen[addr] = true
	}

	emails := make([]string, 0, len(seen))
	for addr := range seen {
		emails = append(emails, addr)
	}
	sort.Strings(emails)
	return emails
}

var businessPrefixes = []string{"kontakt@", "info@", "rezervace@", "obchod@", "salon@", "kavarna@", "restaurace@"}

// primaryEmail picks the address most likely to reach the owner: own
// domain first, then Czech domains and common business prefixes,
// machine addresses last.
func primaryEmail(emails []string, domain string) string {
	if len(emails) == 0 {
		return ""
	}

	weight := func(email string) int {
		w := 100
		if domain != "" && strings.HasSuffix(email, "@"+domain) {
			w -= 50
		}
		if strings.HasSuffix(email, ".cz") {
			w -= 20
		}
		for i, prefix := range businessPrefixes {
			if strings.HasPrefix(email, prefix) {
				w -= 10 - i
				break
			}
		}
		for _, generic := range []string{"noreply@", "no-reply@", "mailer-daemon@", "postmaster@"} {
			if strings.HasPrefix(email, generic) {
				w += 100
			}
		}
		return w
	}

	best := emails[0]
	bestWeight := weight(best)
	for _, email := range emails[1:] {
		if w := weight(email); w < bestWeight {
			best, bestWeight = email, w
		}
	}
	return best
}

func socialLinks(doc *goquery.Document) (instagram, facebook string) {
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.ToLower(href)

		if instagram == "" {
			if m := instagramRe.FindStringSubmatch(href); m != nil && m[1] != "" {
				instagram = "https://instagram.com/" + m[1]
			}
		}
		if facebook == "" {
			if m := facebookRe.FindStringSubmatch(href); m != nil && m[1] != "" {
				facebook = "https://facebook.com/" + m[1]
			}
		}
	})
	return instagram, facebook
}

var contactKeywords = []string{"kontakt", "contact", "kontakty", "rezervace", "reservation"}

func hasContactPage(doc *goquery.Document) bool {
	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		text := strings.ToLower(sel.Text())
		href = strings.ToLower(href)
		for _, kw := range contactKeywords {
			if strings.Contains(text, kw) || strings.Contains(href, kw) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func latestCopyrightYear(text string) int {
	year := 0
	for _, m := range copyrightRe.FindAllStringSubmatch(text, -1) {
		for _, group := range m[1:] {
			if group == "" {
				continue
			}
			y, err := strconv.Atoi(group)
			if err != nil || y < 1995 || y > 2100 {
				continue
			}
			if y > year {
				year = y
			}
		}
	}
	return year
}

// Domain extracts the bare domain of a URL, without scheme or www,
// for matching emails against the site they came from.
func Domain(url string) string {
	d := strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.ToLower(d)
}

// String implements fmt.Stringer for log-friendly output.
func (r *Result) String() string {
	return fmt.Sprintf("quality=%d email=%q instagram=%q facebook=%q",
		r.QualityScore, r.Email, r.Instagram, r.Facebook)
}
