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

// Package distribution delivers packaged products to their final local or
// remote destination with end-to-end checksum verification.
//
// Delivery is retried at three independent levels: packaging gets its own
// fixed-delay attempt ceiling, delivery gets its own, and the compound
// package+deliver operation is retried with the delay growing by a
// multiplicative factor after each failure. This isolates transient
// packaging failures from transient network failures while bounding total
// retry time.
package distribution

import (
	"context"
	"fmt"

	"github.com/cardinalhq/scenerunner/config"
)

// Result is returned to the order system only after a checksum-verified
// delivery; it is never partially populated.
type Result struct {
	FinalPath     string
	ChecksumPath  string
	ChecksumValue string
}

// TransferError is a network or remote-verification failure. It is
// retried at the delivery sub-level and the outer compound level, then
// fatal.
type TransferError struct {
	Host string
	Err  error
}

func (e *TransferError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("transfer failed: %v", e.Err)
	}
	return fmt.Sprintf("transfer to %s failed: %v", e.Host, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Error is the terminal distribution failure after every retry ceiling
// was exhausted.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("distribution failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Distributor delivers one packaged product per call. The strategy is
// selected once at startup from configuration, never per call.
type Distributor interface {
	// Distribute packages sourceDir and delivers the artifact for the
	// given order, returning the verified result.
	Distribute(ctx context.Context, orderID, sourceDir, outputDir, baseName string) (*Result, error)

	// DistributeStatistics delivers an order's statistics bundle using
	// the same transfer machinery, without packaging.
	DistributeStatistics(ctx context.Context, orderID, statsDir string) error
}

// New selects the distribution strategy from validated configuration.
func New(cfg *config.Config) (Distributor, error) {
	switch cfg.Distribution.Method {
	case config.DistributionLocal:
		return newLocalDistributor(cfg.Distribution), nil
	case config.DistributionRemote:
		return newRemoteDistributor(cfg.Distribution), nil
	default:
		return nil, fmt.Errorf("unsupported distribution method: %s", cfg.Distribution.Method)
	}
}
