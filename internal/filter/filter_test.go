package filter_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"supportbot/backend/internal/config"
	"supportbot/backend/internal/filter"
	"supportbot/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newFilter(t *testing.T, mutate func(*config.FilterConfig)) (*filter.Filter, *fakeClock) {
	t.Helper()
	cfg := config.DefaultFilterConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := newClock()
	f, err := filter.New(cfg, filter.WithClock(clock.Now))
	require.NoError(t, err)
	return f, clock
}

func TestClassify_MediaAndEmptyPass(t *testing.T) {
	f, _ := newFilter(t, nil)

	for _, kind := range []models.MessageKind{models.KindVoice, models.KindVideo, models.KindVideoNote} {
		v := f.Classify(1, "fuck", kind)
		assert.False(t, v.Blocked, "kind %s is never inspected", kind)
	}
	assert.False(t, f.Classify(1, "   ", models.KindText).Blocked)
	assert.Equal(t, 0, f.SenderCount(1), "skipped messages do not touch rate state")
}

func TestClassify_ExceptionPrecedence(t *testing.T) {
	f, _ := newFilter(t, nil)

	v := f.Classify(1, "Thanks, this shit is hard", models.KindText)

	assert.False(t, v.Blocked)
	assert.Equal(t, filter.CategoryNone, v.Category)
	assert.Equal(t, 0, f.SenderCount(1), "exception passes skip the rate counter")
}

func TestClassify_Categories(t *testing.T) {
	tests := []struct {
		name string
		text string
		want filter.Category
	}{
		{"profanity", "what the fuck", filter.CategoryBadWords},
		{"profanity mixed case", "What The FUCK", filter.CategoryBadWords},
		{"profanity cyrillic", "Какой ПИЗДЕЦ", filter.CategoryBadWords},
		{"offensive", "you are an idiot", filter.CategoryOffensive},
		{"url", "look at https://example.com/page", filter.CategoryLinks},
		{"url upper", "HTTPS://EXAMPLE.COM", filter.CategoryLinks},
		{"www", "visit www.example.com", filter.CategoryLinks},
		{"telegram", "join t.me/somechannel", filter.CategoryLinks},
		{"mention", "write to @nightowl", filter.CategoryLinks},
		{"hashtag", "today #mood", filter.CategoryLinks},
		{"shortener", "bit.ly/abc", filter.CategoryLinks},
		{"repeated rune", "nooooooo", filter.CategorySpamPattern},
		{"caps run", "ABCDEFGHIJKLMNOP", filter.CategorySpamPattern},
		{"punctuation run", "why?!?!?", filter.CategorySpamPattern},
		{"symbol run", "$%^&*()$%^&*", filter.CategorySpamPattern},
		{"short tokens", strings.Repeat("no ", 20), filter.CategorySpamPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newFilter(t, nil)

			v := f.Classify(7, tt.text, models.KindText)

			assert.True(t, v.Blocked)
			assert.Equal(t, tt.want, v.Category)
			assert.NotEmpty(t, v.Detail)
			assert.Equal(t, 0, f.SenderCount(7), "blocked messages are free")
		})
	}
}

func TestClassify_ShortMentionAndFewShortTokensPass(t *testing.T) {
	f, _ := newFilter(t, nil)

	assert.False(t, f.Classify(1, "hi @bob", models.KindText).Blocked, "mentions under five characters are allowed")
	assert.False(t, f.Classify(2, strings.Repeat("no ", 19)+"really", models.KindText).Blocked)
	assert.False(t, f.Classify(3, "so sad today, I feel alone", models.KindText).Blocked)
}

func TestClassify_DetailListsAtMostThreeMatches(t *testing.T) {
	f, _ := newFilter(t, nil)

	v := f.Classify(1, "fuck shit bitch crap piss", models.KindText)

	require.True(t, v.Blocked)
	listed := strings.TrimPrefix(v.Detail, "profanity detected: ")
	assert.Len(t, strings.Split(listed, ", "), 3)
}

func TestClassify_Toggles(t *testing.T) {
	f, _ := newFilter(t, func(c *config.FilterConfig) {
		c.EnableBadWords = false
		c.EnableLinks = false
		c.EnableSpamPatterns = false
	})

	assert.False(t, f.Classify(1, "shit happens", models.KindText).Blocked)
	assert.False(t, f.Classify(2, "https://example.com", models.KindText).Blocked)
	assert.False(t, f.Classify(3, "nooooooooo", models.KindText).Blocked)
	assert.True(t, f.Classify(4, "what a moron", models.KindText).Blocked, "offensive check stays on")
}

func TestClassify_RateLimitBlocksWithoutMutation(t *testing.T) {
	f, clock := newFilter(t, nil)

	for i := 0; i < config.DefaultMaxMessagesPerMinute; i++ {
		require.False(t, f.Classify(1, "I feel a bit better", models.KindText).Blocked)
	}
	clock.Advance(10 * time.Second)

	v := f.Classify(1, "I feel a bit better", models.KindText)

	require.True(t, v.Blocked)
	assert.Equal(t, filter.CategorySpamFrequency, v.Category)
	assert.Equal(t, 50*time.Second, v.Retry)
	assert.Contains(t, v.Detail, "0 min 50 sec")
	assert.Equal(t, config.DefaultMaxMessagesPerMinute, f.SenderCount(1))

	assert.False(t, f.Classify(2, "I feel a bit better", models.KindText).Blocked, "limits are per sender")
}

func TestClassify_RateWindowReset(t *testing.T) {
	f, clock := newFilter(t, nil)

	for i := 0; i < config.DefaultMaxMessagesPerMinute; i++ {
		require.False(t, f.Classify(1, "still here", models.KindText).Blocked)
	}
	require.True(t, f.Classify(1, "still here", models.KindText).Blocked)

	clock.Advance(config.RateWindow)

	v := f.Classify(1, "still here", models.KindText)
	assert.False(t, v.Blocked)
	assert.Equal(t, 1, f.SenderCount(1), "counter reflects only the post-wait message")
}

func TestClassify_Presets(t *testing.T) {
	tests := []struct {
		level  string
		allow  int
		spamOn bool
	}{
		{"low", 10, false},
		{"medium", 5, true},
		{"high", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			f, _ := newFilter(t, func(c *config.FilterConfig) {
				require.NoError(t, c.ApplyStrictness(tt.level))
			})

			for i := 0; i < tt.allow; i++ {
				require.False(t, f.Classify(1, "one more message", models.KindText).Blocked, "message %d", i+1)
			}
			assert.True(t, f.Classify(1, "one more message", models.KindText).Blocked)

			assert.Equal(t, tt.spamOn, f.Classify(2, "ABCDEFGHIJKLMNOP", models.KindText).Blocked)
		})
	}
}

func TestClassify_ConcurrentSameSender(t *testing.T) {
	f, _ := newFilter(t, func(c *config.FilterConfig) {
		c.MaxMessagesPerMinute = 1000
	})

	const workers = 64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			f.Classify(1, "hang in there", models.KindText)
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, f.SenderCount(1))
}

func TestClassify_ConcurrentLimitIsExact(t *testing.T) {
	f, _ := newFilter(t, nil)

	const workers = 40
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		passed int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if !f.Classify(1, "hang in there", models.KindText).Blocked {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, config.DefaultMaxMessagesPerMinute, passed)
}

func TestCheck_CancelLeavesCountUnchanged(t *testing.T) {
	f, _ := newFilter(t, nil)
	require.False(t, f.Classify(1, "first message", models.KindText).Blocked)

	for i := 0; i < 2*config.DefaultMaxMessagesPerMinute; i++ {
		v, r := f.Check(1, "a reply that never lands", models.KindText)
		require.False(t, v.Blocked, "attempt %d", i+1)
		require.NotNil(t, r)
		r.Cancel()
	}

	assert.Equal(t, 1, f.SenderCount(1))
}

func TestCheck_ReservationsHoldTheLimit(t *testing.T) {
	f, _ := newFilter(t, nil)

	var held []*filter.Reservation
	for i := 0; i < config.DefaultMaxMessagesPerMinute; i++ {
		v, r := f.Check(1, "in flight", models.KindText)
		require.False(t, v.Blocked)
		held = append(held, r)
	}
	assert.Zero(t, f.SenderCount(1), "nothing is charged before commit")

	v, r := f.Check(1, "in flight", models.KindText)
	require.True(t, v.Blocked)
	assert.Equal(t, filter.CategorySpamFrequency, v.Category)
	assert.Nil(t, r)

	held[0].Cancel()
	v, r = f.Check(1, "in flight", models.KindText)
	require.False(t, v.Blocked, "a cancelled slot is free again")
	held[0] = r

	for _, r := range held {
		r.Commit()
		r.Commit()
	}
	assert.Equal(t, config.DefaultMaxMessagesPerMinute, f.SenderCount(1), "commit is counted once")
}

func TestCheck_NoReservationWithoutRateCheck(t *testing.T) {
	f, _ := newFilter(t, nil)

	_, r := f.Check(1, "", models.KindVoice)
	assert.Nil(t, r)
	v, r := f.Check(1, "ABCDEFGHIJKLMNOPQRS", models.KindText)
	assert.True(t, v.Blocked)
	assert.Nil(t, r)

	r.Commit()
	r.Cancel()
	assert.Zero(t, f.Tracked())
}

func TestSweep_KeepsInFlightSenders(t *testing.T) {
	f, clock := newFilter(t, nil)

	_, r := f.Check(1, "slow store", models.KindText)
	clock.Advance(2 * config.RateWindow)

	assert.Zero(t, f.Sweep(clock.Now()))
	r.Commit()
	assert.Equal(t, 1, f.SenderCount(1))
}

func TestSweep(t *testing.T) {
	f, clock := newFilter(t, nil)

	f.Classify(1, "first sender", models.KindText)
	clock.Advance(30 * time.Second)
	f.Classify(2, "second sender", models.KindText)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, f.Sweep(clock.Now()))
	assert.Equal(t, 1, f.Tracked())
	assert.Equal(t, 0, f.SenderCount(1))
	assert.Equal(t, 1, f.SenderCount(2))

	f.ResetSender(2)
	assert.Equal(t, 0, f.Tracked())
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	f, _ := newFilter(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.RunSweeper(ctx, time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestAddRemoveWord(t *testing.T) {
	f, _ := newFilter(t, nil)

	assert.False(t, f.Classify(1, "you are a muppet", models.KindText).Blocked)

	require.NoError(t, f.AddWord(filter.ListOffensive, "Muppet"))
	v := f.Classify(2, "you are a MUPPET", models.KindText)
	assert.Equal(t, filter.CategoryOffensive, v.Category)

	require.NoError(t, f.RemoveWord(filter.ListOffensive, "muppet"))
	assert.False(t, f.Classify(3, "you are a muppet", models.KindText).Blocked)

	assert.Error(t, f.AddWord("nope", "x"))
	assert.Error(t, f.AddWord(filter.ListBad, "  "))
}

func TestNew_BadPattern(t *testing.T) {
	cfg := config.DefaultFilterConfig()
	cfg.SpamPatterns = []string{"(unclosed"}

	_, err := filter.New(cfg)
	assert.Error(t, err)
}
