package results

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// backoff bounds the retries of a write that lost a lock race, e.g. two
// sweeps saving into the same WAL database.
type backoff struct {
	attempts int
	base     time.Duration
	ceiling  time.Duration
}

var writeBackoff = backoff{
	attempts: 4,
	base:     50 * time.Millisecond,
	ceiling:  500 * time.Millisecond,
}

// contended reports whether err comes from lock or WAL contention, which a
// later attempt may not hit. busy_timeout absorbs most SQLITE_BUSY; the rest
// surface here.
func contended(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		if se.Code() == sqlite3.SQLITE_IOERR_SHORT_READ {
			return true
		}
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// wait returns the pause before retry number attempt (0-based): doubling
// from base up to ceiling, plus up to base of jitter.
func (b backoff) wait(attempt int) time.Duration {
	d := min(b.base<<uint(attempt), b.ceiling)
	return d + time.Duration(rand.Int63n(int64(b.base)))
}

// do runs fn until it succeeds, fails without contention or runs out of
// attempts. A done ctx ends the pause early with ctx's error.
func (b backoff) do(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if !contended(err) || attempt+1 >= b.attempts {
			return err
		}
		timer := time.NewTimer(b.wait(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrapf(ctx.Err(), "retrying %v", err)
		case <-timer.C:
		}
	}
}
