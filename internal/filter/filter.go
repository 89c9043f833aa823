// Package filter classifies free text before it reaches the shared pool.
//
// Checks run in a fixed order and stop at the first block: exception phrases,
// profanity, offensive language, links and mentions, spam heuristics, and
// finally a per-sender rate limit. Only text is inspected; media always
// passes.
package filter

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"supportbot/backend/internal/config"
	"supportbot/backend/internal/models"

	"github.com/puzpuzpuz/xsync/v3"
)

// Category names the rule that blocked a message. The zero value means the
// message passed.
type Category string

const (
	CategoryNone          Category = ""
	CategoryBadWords      Category = "bad_words"
	CategoryOffensive     Category = "offensive_words"
	CategoryLinks         Category = "links"
	CategorySpamPattern   Category = "spam_pattern"
	CategorySpamFrequency Category = "spam_frequency"
)

// Verdict is the outcome of Classify. Retry is set only for rate-limit
// blocks.
type Verdict struct {
	Blocked  bool          `json:"blocked"`
	Category Category      `json:"category,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Retry    time.Duration `json:"-"`
}

func pass() Verdict { return Verdict{} }

func block(cat Category, detail string) Verdict {
	return Verdict{Blocked: true, Category: cat, Detail: detail}
}

// Filter holds the rule set and the per-sender rate state. It is safe for
// concurrent use.
type Filter struct {
	cfg config.FilterConfig

	mu    sync.RWMutex
	words map[WordList]map[string]struct{}

	links []*regexp.Regexp
	spam  []*regexp.Regexp

	rates  *xsync.MapOf[int64, rateState]
	window time.Duration
	now    func() time.Time
	log    *slog.Logger
}

type Option func(*Filter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) { f.now = now }
}

// WithWindow overrides the rate window.
func WithWindow(d time.Duration) Option {
	return func(f *Filter) { f.window = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Filter) { f.log = l }
}

// New compiles the configured patterns. Link patterns are matched
// case-insensitively.
func New(cfg config.FilterConfig, opts ...Option) (*Filter, error) {
	f := &Filter{
		cfg: cfg,
		words: map[WordList]map[string]struct{}{
			ListBad:       wordSet(cfg.BadWords),
			ListOffensive: wordSet(cfg.OffensiveWords),
			ListException: wordSet(cfg.ExceptionWords),
		},
		rates:  xsync.NewMapOf[int64, rateState](),
		window: config.RateWindow,
		now:    time.Now,
		log:    slog.Default(),
	}
	if f.cfg.MaxMessagesPerMinute <= 0 {
		f.cfg.MaxMessagesPerMinute = config.DefaultMaxMessagesPerMinute
	}
	for _, opt := range opts {
		opt(f)
	}

	for _, p := range cfg.LinkPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("link pattern %q: %w", p, err)
		}
		f.links = append(f.links, re)
	}
	for _, p := range cfg.SpamPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("spam pattern %q: %w", p, err)
		}
		f.spam = append(f.spam, re)
	}
	return f, nil
}

// Check runs the pipeline for one message without charging the sender. A
// passing text message that is subject to the rate limit gets a Reservation
// holding its slot: the caller commits it once the message reaches the pool
// and cancels it otherwise. The Reservation is nil when nothing was reserved.
func (f *Filter) Check(senderID int64, text string, kind models.MessageKind) (Verdict, *Reservation) {
	v, r := f.classify(senderID, text, kind)
	observe(v)
	if v.Blocked {
		f.log.Info("message blocked", "sender", senderID, "category", v.Category, "detail", v.Detail)
	}
	return v, r
}

// Classify runs the pipeline and charges a passing message to the sender
// straight away.
func (f *Filter) Classify(senderID int64, text string, kind models.MessageKind) Verdict {
	v, r := f.Check(senderID, text, kind)
	r.Commit()
	return v
}

func (f *Filter) classify(senderID int64, text string, kind models.MessageKind) (Verdict, *Reservation) {
	if kind != models.KindText || strings.TrimSpace(text) == "" {
		return pass(), nil
	}

	lower := normalize(text)

	if phrase, ok := f.firstMatch(ListException, lower); ok {
		f.log.Debug("exception phrase matched", "sender", senderID, "phrase", phrase)
		return pass(), nil
	}

	if f.cfg.EnableBadWords {
		if found := f.matchWords(ListBad, lower); len(found) > 0 {
			return block(CategoryBadWords, "profanity detected: "+strings.Join(found, ", ")), nil
		}
	}

	if f.cfg.EnableOffensiveWords {
		if found := f.matchWords(ListOffensive, lower); len(found) > 0 {
			return block(CategoryOffensive, "offensive language detected: "+strings.Join(found, ", ")), nil
		}
	}

	if f.cfg.EnableLinks {
		if found := f.matchLinks(text); len(found) > 0 {
			return block(CategoryLinks, "links or mentions detected: "+strings.Join(found, ", ")), nil
		}
	}

	if f.cfg.EnableSpamPatterns {
		if reason, ok := f.matchSpam(text); ok {
			return block(CategorySpamPattern, "spam pattern detected: "+reason), nil
		}
	}

	if !f.cfg.EnableRateLimit {
		return pass(), nil
	}
	r, retry, limited := f.reserve(senderID)
	if limited {
		v := block(CategorySpamFrequency, "too many messages, try again in "+formatCooldown(retry))
		v.Retry = retry
		return v, nil
	}
	return pass(), r
}
