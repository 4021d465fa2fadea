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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/scenerunner/config"
	"github.com/cardinalhq/scenerunner/internal/packaging"
)

func fastConfig() config.DistributionConfig {
	cfg := config.DefaultDistributionConfig()
	cfg.PackagingDelay = 0
	cfg.DeliveryDelay = 0
	cfg.Delay = 0
	return cfg
}

func TestLocalDistribute(t *testing.T) {
	source := t.TempDir()
	output := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "band1.img"), []byte("raster"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(source, "scene.xml"), []byte("<espa_metadata/>"), 0644))

	cfg := fastConfig()
	cfg.LocalDir = t.TempDir()

	dist, err := New(&config.Config{Distribution: cfg, Work: config.DefaultWorkConfig()})
	require.NoError(t, err)

	res, err := dist.Distribute(context.Background(), "order-1", source, output, "product")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.LocalDir, "order-1", "product.tar.gz"), res.FinalPath)
	assert.Equal(t, filepath.Join(cfg.LocalDir, "order-1", "product.md5"), res.ChecksumPath)
	require.NoError(t, packaging.Verify(res.FinalPath, res.ChecksumPath))

	members, err := packaging.Members(res.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"band1.img", "scene.xml"}, members)
}

func TestLocalDistributeEmptySourceExhaustsRetries(t *testing.T) {
	cfg := fastConfig()
	cfg.LocalDir = t.TempDir()

	d := newLocalDistributor(cfg)
	_, err := d.Distribute(context.Background(), "order-1", t.TempDir(), t.TempDir(), "product")
	require.Error(t, err)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, cfg.Attempts, derr.Attempts)

	var perr *packaging.Error
	assert.ErrorAs(t, err, &perr)
}

func TestLocalDistributeStatistics(t *testing.T) {
	statsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(statsDir, "band1.stats"), []byte("MEAN: 5\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(statsDir, "band2.stats"), []byte("MEAN: 7\n"), 0644))

	cfg := fastConfig()
	cfg.LocalDir = t.TempDir()

	d := newLocalDistributor(cfg)
	require.NoError(t, d.DistributeStatistics(context.Background(), "order-1", statsDir))

	for _, name := range []string{"band1.stats", "band2.stats"} {
		data, err := os.ReadFile(filepath.Join(cfg.LocalDir, "order-1", "stats", name))
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}
