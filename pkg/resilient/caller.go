package resilient

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Options configure retry and rate limiting for one endpoint group.
type Options struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	CallsPerMinute int
}

// Caller wraps outbound calls to one endpoint group with a shared rate
// limiter and exponential backoff on transient failures. All clients
// talking to the same group must share one Caller so the call ceiling
// holds across goroutines.
type Caller struct {
	group   string
	opts    Options
	limiter *rate.Limiter
}

// New builds a Caller for the named endpoint group. A non-positive
// CallsPerMinute disables rate limiting.
func New(group string, opts Options) *Caller {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	limit := rate.Inf
	if opts.CallsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.CallsPerMinute))
	}
	return &Caller{
		group:   group,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Do runs op under the group's rate limit, retrying transient failures
// with exponential backoff until the attempt budget runs out. Permanent
// failures and context cancellation return immediately.
func (c *Caller) Do(ctx context.Context, desc string, op func() error) error {
	attempt := 0
	wrapped := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !Transient(err) {
			return backoff.Permanent(err)
		}
		log.Debugf("%s: transient failure on attempt %d/%d: %v", desc, attempt, c.opts.MaxAttempts, err)
		return err
	}

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = c.opts.BaseDelay
	boff.MaxElapsedTime = 0
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(boff, uint64(c.opts.MaxAttempts-1)), ctx))
}

// Transient reports whether err is worth retrying: network timeouts,
// temporary failures, rate limiting and 5xx server errors are. Anything
// else, a 404 for a package that does not exist in particular, is not.
func Transient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || netErr.Temporary()
	}
	return false
}
