// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
)

// ErrTimeout is returned when the condition is still not met after Timeout.
var ErrTimeout = errors.New("timed out waiting")

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 30 * time.Minute
)

// CheckFunc reports whether the awaited condition holds. status is a short
// human readable description of the current state, used for progress output
// and for the timeout error. A non-nil error stops polling immediately.
type CheckFunc func(ctx context.Context) (done bool, status string, err error)

// Options controls a polling loop. The zero value polls every
// DefaultInterval for up to DefaultTimeout. A negative Timeout polls forever.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	// Delay is waited once before the first check.
	Delay time.Duration
	// OnTick, if set, is called after every check that is not done.
	OnTick func(attempt int, status string)
}

// Until calls check until it reports done, fails, the timeout elapses or ctx
// is cancelled. The interval between checks is fixed.
func Until(ctx context.Context, opts Options, check CheckFunc) error {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < 0 {
		interval = 0
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	if opts.Delay > 0 {
		if err := sleep(ctx, opts.Delay); err != nil {
			return err
		}
	}

	for attempt := 1; ; attempt++ {
		done, status, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			log.Debugf("poll done after %d attempt(s): %s", attempt, status)
			return nil
		}

		if opts.OnTick != nil {
			opts.OnTick(attempt, status)
		} else {
			log.Infof("waiting: %s", status)
		}

		if !deadline.IsZero() && time.Now().Add(interval).After(deadline) {
			return fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, status)
		}

		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
