package filter

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// rateState is one sender's window. count holds messages that reached the
// pool; pending holds slots reserved by Check whose message is still being
// stored.
type rateState struct {
	count   int
	pending int
	last    time.Time
}

// Reservation is a rate slot taken by Check. Commit charges it to the sender
// once the message is stored; Cancel hands it back. A nil Reservation is a
// no-op.
type Reservation struct {
	f      *Filter
	sender int64
	done   atomic.Bool
}

// Commit counts the reserved message against the sender.
func (r *Reservation) Commit() {
	if r == nil || !r.done.CompareAndSwap(false, true) {
		return
	}
	now := r.f.now()
	r.f.rates.Compute(r.sender, func(st rateState, loaded bool) (rateState, bool) {
		if loaded && now.Sub(st.last) >= r.f.window {
			st.count = 0
		}
		if st.pending > 0 {
			st.pending--
		}
		return rateState{count: st.count + 1, pending: st.pending, last: now}, false
	})
}

// Cancel releases the slot without charging the sender.
func (r *Reservation) Cancel() {
	if r == nil || !r.done.CompareAndSwap(false, true) {
		return
	}
	r.f.rates.Compute(r.sender, func(st rateState, loaded bool) (rateState, bool) {
		if !loaded {
			return st, true
		}
		if st.pending > 0 {
			st.pending--
		}
		return st, st.count == 0 && st.pending == 0
	})
}

// reserve applies the per-sender window. A sender whose last counted message
// is a full window old starts from zero. Counted and in-flight messages both
// take up the limit; at the limit the call is rejected and the state is left
// alone.
func (f *Filter) reserve(senderID int64) (*Reservation, time.Duration, bool) {
	now := f.now()
	limit := f.cfg.MaxMessagesPerMinute

	var retry time.Duration
	limited := false
	f.rates.Compute(senderID, func(st rateState, loaded bool) (rateState, bool) {
		if loaded && now.Sub(st.last) >= f.window {
			st.count = 0
		}
		if st.count+st.pending >= limit {
			limited = true
			retry = f.window - now.Sub(st.last)
			if st.count == 0 || retry <= 0 {
				// only in-flight messages hold the limit
				retry = time.Second
			}
			return st, !loaded
		}
		st.pending++
		return st, false
	})
	if limited {
		return nil, retry, true
	}
	return &Reservation{f: f, sender: senderID}, 0, false
}

// Sweep evicts senders with nothing in flight whose last counted message is
// at least one window old and returns how many were evicted.
func (f *Filter) Sweep(now time.Time) int {
	evicted := 0
	f.rates.Range(func(id int64, _ rateState) bool {
		f.rates.Compute(id, func(st rateState, loaded bool) (rateState, bool) {
			if loaded && st.pending == 0 && now.Sub(st.last) >= f.window {
				evicted++
				return st, true
			}
			return st, !loaded
		})
		return true
	})
	return evicted
}

// RunSweeper calls Sweep every interval until ctx is done.
func (f *Filter) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := f.Sweep(f.now()); n > 0 {
				f.log.Debug("swept idle senders", "evicted", n, "tracked", f.rates.Size())
			}
		}
	}
}

// ResetSender forgets a sender's rate state.
func (f *Filter) ResetSender(senderID int64) {
	f.rates.Delete(senderID)
}

// SenderCount reports how many messages are counted against the sender in
// the current window state.
func (f *Filter) SenderCount(senderID int64) int {
	st, ok := f.rates.Load(senderID)
	if !ok {
		return 0
	}
	return st.count
}

// Tracked is the number of senders with rate state.
func (f *Filter) Tracked() int {
	return f.rates.Size()
}

func formatCooldown(d time.Duration) string {
	if rem := d % time.Second; rem > 0 {
		d += time.Second - rem
	}
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d min %d sec", secs/60, secs%60)
}
