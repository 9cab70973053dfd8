// Package normalize canonicalizes business identity fields for matching.
// Normalized names are persisted as join keys, so every function here must
// stay deterministic and stable across runs.
package normalize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixTokens lists Czech legal entity suffixes as token sequences,
// matched against the tail of the tokenized name after punctuation removal.
// "s.r.o.", "s.r.o" and "(s.r.o.)" all arrive here as the "sro" token, so
// every dotted spelling collapses to one of these forms. Longest first.
var legalSuffixTokens = [][]string{
	{"spol", "s", "r", "o"},
	{"spol", "s", "ro"},
	{"s", "r", "o"},
	{"v", "o", "s"},
	{"o", "p", "s"},
	{"s", "ro"},
	{"sro"},
	{"vos"},
	{"ops"},
}

// shortSuffixTokens are collapsed two-letter suffixes that collide with
// ordinary words and place names (Aš folds to "as"). Stripped only when the
// raw name carried a dotted spelling.
var shortSuffixTokens = [][]string{
	{"a", "s"},
	{"z", "s"},
	{"k", "s"},
	{"o", "s"},
	{"as"},
	{"zs"},
	{"ks"},
	{"os"},
}

// tradeDescriptors are generic category words that carry no identity signal.
// Listed in their diacritic-folded form.
var tradeDescriptors = map[string]bool{
	"restaurace": true,
	"restaurant": true,
	"kavarna":    true,
	"cafe":       true,
	"bistro":     true,
	"pizzerie":   true,
	"pizzeria":   true,
	"cukrarna":   true,
	"pekarna":    true,
	"bar":        true,
	"pub":        true,
	"hospoda":    true,
	"hostinec":   true,
}

var (
	nonDigitRe = regexp.MustCompile(`\D`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// Name canonicalizes a business name for identity matching:
//  1. Lowercase and fold diacritics (Kavárna -> kavarna)
//  2. Strip punctuation; & and - become token boundaries
//  3. Drop generic trade-descriptor tokens (restaurace, cafe, ...)
//  4. Strip trailing legal entity suffixes (s.r.o., a.s., ...)
//  5. Collapse whitespace
//
// Pure, total and idempotent; empty input yields empty output. Suffix
// stripping runs after punctuation removal and repeats until no suffix
// remains, so half-stripped forms like "novak sro" cannot survive a pass.
func Name(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}

	name = foldDiacritics(name)
	dotted := strings.Contains(name, ".")

	name = strings.NewReplacer(
		"&", " ",
		"-", " ",
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"(", " ",
		")", " ",
		"/", " ",
	).Replace(name)

	fields := strings.Fields(name)
	kept := fields[:0]
	for _, f := range fields {
		if !tradeDescriptors[f] {
			kept = append(kept, f)
		}
	}

	return strings.Join(stripLegalSuffixes(kept, dotted), " ")
}

// stripLegalSuffixes trims trailing legal suffix tokens until none match.
// The output carries no dots, so a second Name pass finds nothing to strip.
func stripLegalSuffixes(tokens []string, dotted bool) []string {
	for {
		n := len(tokens)
		tokens = trimSuffixTokens(tokens, legalSuffixTokens)
		if dotted {
			tokens = trimSuffixTokens(tokens, shortSuffixTokens)
		}
		if len(tokens) == n {
			return tokens
		}
	}
}

// trimSuffixTokens removes the first matching suffix sequence from the tail,
// always leaving at least one token of the name itself.
func trimSuffixTokens(tokens []string, suffixes [][]string) []string {
	for _, suf := range suffixes {
		if len(tokens) <= len(suf) {
			continue
		}
		tail := tokens[len(tokens)-len(suf):]
		match := true
		for i := range suf {
			if tail[i] != suf[i] {
				match = false
				break
			}
		}
		if match {
			return tokens[:len(tokens)-len(suf)]
		}
	}
	return tokens
}

// Phone canonicalizes a Czech phone number to +420XXXXXXXXX. It strips all
// non-digits, then the 00 international prefix, then the 420 country code,
// and requires exactly 9 digits to remain. Anything else fails; it never
// guesses a shorter or longer number.
func Phone(phone string) (string, bool) {
	digits := nonDigitRe.ReplaceAllString(phone, "")
	if digits == "" {
		return "", false
	}

	digits = strings.TrimPrefix(digits, "00")
	digits = strings.TrimPrefix(digits, "420")

	if len(digits) != 9 {
		return "", false
	}
	return "+420" + digits, true
}

// URL normalizes a URL: defaults the scheme to https, lowercases the host
// and requires the result to parse with a non-empty host.
func URL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || !strings.Contains(u.Host, ".") {
		return "", false
	}

	u.Host = strings.ToLower(u.Host)
	return u.Scheme + "://" + u.Host + u.Path, true
}

// Email lowercases and validates an email address.
func Email(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRe.MatchString(email) {
		return "", false
	}
	return email, true
}

// icoWeights are the checksum weights for the first seven IČO digits.
var icoWeights = [7]int{8, 7, 6, 5, 4, 3, 2}

// ValidICO validates a Czech company identification number: 8 digits whose
// last digit is a weighted mod-11 checksum of the first seven.
func ValidICO(ico string) bool {
	ico = strings.ReplaceAll(ico, " ", "")
	if len(ico) != 8 {
		return false
	}

	sum := 0
	for i, w := range icoWeights {
		d := ico[i]
		if d < '0' || d > '9' {
			return false
		}
		sum += w * int(d-'0')
	}
	last := ico[7]
	if last < '0' || last > '9' {
		return false
	}

	check := (11 - sum%11) % 10
	return int(last-'0') == check
}

// IsCzechDomain reports whether the URL's host is a .cz domain.
func IsCzechDomain(raw string) bool {
	normalized, ok := URL(raw)
	if !ok {
		return false
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), ".cz")
}

// Fold lowercases and strips diacritics without any other rewriting. Used
// for loose comparisons (addresses) where full name normalization would
// discard too much.
func Fold(s string) string {
	return foldDiacritics(strings.ToLower(strings.TrimSpace(s)))
}

// foldDiacritics strips combining marks: "přátelství" -> "pratelstvi".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
