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

package config

import "time"

const (
	DistributionLocal  = "local"
	DistributionRemote = "remote"
)

// DefaultDistributionConfig returns the distribution defaults. The retry
// ceilings follow the deployed behavior: packaging and delivery each get
// three fixed-delay attempts, and the compound package+deliver operation
// gets five attempts with the delay growing by 1.5x after each failure.
func DefaultDistributionConfig() DistributionConfig {
	return DistributionConfig{
		Method:            DistributionLocal,
		SSHPort:           22,
		PingTimeout:       5 * time.Second,
		HostRecheckTTL:    60 * time.Second,
		PackagingAttempts: 3,
		PackagingDelay:    15 * time.Second,
		DeliveryAttempts:  3,
		DeliveryDelay:     15 * time.Second,
		Attempts:          5,
		Delay:             30 * time.Second,
		BackoffFactor:     1.5,
	}
}

// DefaultWorkConfig returns the working directory defaults.
func DefaultWorkConfig() WorkConfig {
	return WorkConfig{
		BaseDir: "/tmp/scenerunner",
	}
}
