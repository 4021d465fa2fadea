// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package retry provides the bounded retry combinator used at the
// packaging, delivery and outer distribution levels.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cardinalhq/scenerunner/internal/logctx"
)

// Policy bounds a retried operation. Delay is slept between attempts;
// when BackoffFactor is greater than 1 the delay is multiplied by it
// after each failed attempt.
type Policy struct {
	MaxAttempts   int
	Delay         time.Duration
	BackoffFactor float64
}

// Do runs op until it succeeds or the attempt ceiling is reached.
// The last error is returned unwrapped so callers can inspect its kind.
// A ceiling below one still runs op once.
func Do(ctx context.Context, name string, p Policy, op func() error) error {
	ll := logctx.FromContext(ctx)

	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	delay := p.Delay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}

		ll.Warn("operation failed, will retry",
			slog.String("operation", name),
			slog.Int("attempt", attempt),
			slog.Int("maxAttempts", p.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr),
		)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		if p.BackoffFactor > 1 {
			delay = time.Duration(float64(delay) * p.BackoffFactor)
		}
	}

	ll.Error("operation failed, attempts exhausted",
		slog.String("operation", name),
		slog.Int("maxAttempts", p.MaxAttempts),
		slog.Any("error", lastErr),
	)
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
