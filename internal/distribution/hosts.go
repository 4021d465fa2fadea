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

package distribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/cardinalhq/scenerunner/internal/logctx"
)

// ErrNoReachableHost means every configured cache host failed its
// reachability probe for one pick.
var ErrNoReachableHost = errors.New("no reachable cache host")

// pingFunc probes one host for reachability.
type pingFunc func(ctx context.Context, host string) error

// hostPicker selects a reachable cache host from the configured list.
// Candidates are tried in random order; a host that fails its probe is
// dropped from the candidate set for that call and cached unreachable
// for a short TTL so back-to-back orders do not re-probe a dead host.
type hostPicker struct {
	hosts       []string
	unreachable *ttlcache.Cache[string, struct{}]
	ttl         time.Duration
	ping        pingFunc
}

func newHostPicker(hosts []string, sshPort int, pingTimeout, recheckTTL time.Duration) *hostPicker {
	cache := ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](recheckTTL),
	)
	go cache.Start()

	return &hostPicker{
		hosts:       hosts,
		unreachable: cache,
		ttl:         recheckTTL,
		ping: func(ctx context.Context, host string) error {
			d := net.Dialer{Timeout: pingTimeout}
			conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(sshPort)))
			if err != nil {
				return err
			}
			return conn.Close()
		},
	}
}

// Pick returns the first reachable host from a shuffled candidate list.
func (p *hostPicker) Pick(ctx context.Context) (string, error) {
	ll := logctx.FromContext(ctx)

	candidates := make([]string, len(p.hosts))
	copy(candidates, p.hosts)
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	for _, host := range candidates {
		if p.unreachable.Has(host) {
			continue
		}
		if err := p.ping(ctx, host); err != nil {
			ll.Warn("cache host unreachable",
				slog.String("host", host),
				slog.Any("error", err),
			)
			p.MarkUnreachable(host)
			continue
		}
		return host, nil
	}
	return "", fmt.Errorf("%w (candidates: %d)", ErrNoReachableHost, len(candidates))
}

// MarkUnreachable caches a host as unhealthy for the recheck TTL.
func (p *hostPicker) MarkUnreachable(host string) {
	p.unreachable.Set(host, struct{}{}, p.ttl)
}

// Stop terminates the cache janitor.
func (p *hostPicker) Stop() {
	p.unreachable.Stop()
}
