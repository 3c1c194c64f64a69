// Package textproc tidies a transcript before it is inserted: spoken
// keywords become punctuation, trailing periods are dropped, and the first
// letter is capitalized when a new thought likely starts.
package textproc

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// Gap after which the next transcript is treated as a new sentence.
const Gap = 2 * time.Minute

type rule struct {
	re          *regexp.Regexp
	replacement string
	period      bool
}

// Processor keeps the previous transcript so capitalization can follow on
// from it. Safe for concurrent use.
type Processor struct {
	now func() time.Time

	mu       sync.Mutex
	rules    []rule
	lastAt   time.Time
	lastText string
}

func New(keywords map[string]string) *Processor {
	p := &Processor{now: time.Now}
	p.SetKeywords(keywords)
	return p
}

// SetKeywords replaces the keyword table. Longer keywords are applied first
// so "new line" wins over "line".
func (p *Processor) SetKeywords(keywords map[string]string) {
	keys := make([]string, 0, len(keywords))
	for k := range keywords {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	rules := make([]rule, 0, len(keys))
	for _, k := range keys {
		rules = append(rules, rule{
			re:          regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`),
			replacement: keywords[k],
			period:      strings.Contains(keywords[k], "."),
		})
	}

	p.mu.Lock()
	p.rules = rules
	p.mu.Unlock()
}

func (p *Processor) Reset() {
	p.mu.Lock()
	p.lastAt = time.Time{}
	p.lastText = ""
	p.mu.Unlock()
}

func (p *Processor) Process(text string) string {
	if text == "" {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	explicitPeriod := false
	for _, r := range p.rules {
		if r.period && r.re.MatchString(text) {
			explicitPeriod = true
			break
		}
	}
	for _, r := range p.rules {
		text = r.re.ReplaceAllLiteralString(text, r.replacement)
	}
	if !explicitPeriod {
		text = strings.TrimRight(text, ".")
	}

	now := p.now()
	if p.capitalize(now) {
		text = upperFirst(text)
	}
	p.lastAt = now
	p.lastText = text
	return text
}

func (p *Processor) capitalize(now time.Time) bool {
	if strings.HasSuffix(strings.TrimRightFunc(p.lastText, unicode.IsSpace), ",") {
		return false
	}
	return p.lastAt.IsZero() || now.Sub(p.lastAt) > Gap
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
