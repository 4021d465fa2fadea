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

// Package stats computes per-band summary statistics over the flat
// binary rasters in a work directory. The plot family runs only this
// stage plus distribution.
package stats

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cardinalhq/scenerunner/internal/logctx"
)

// FillValue marks pixels excluded from statistics.
const FillValue = -9999

// BandStats is the summary for one band.
type BandStats struct {
	FileName    string
	Minimum     float64
	Maximum     float64
	Mean        float64
	StdDev      float64
	ValidPixels int
}

// Generate computes statistics for every .img raster under workDir and
// writes one .stats file per band into statsDir.
func Generate(ctx context.Context, workDir, statsDir string) error {
	ll := logctx.FromContext(ctx)

	if err := os.MkdirAll(statsDir, 0755); err != nil {
		return err
	}

	rasters, err := filepath.Glob(filepath.Join(workDir, "*.img"))
	if err != nil {
		return err
	}

	for _, raster := range rasters {
		bs, err := Compute(raster)
		if err != nil {
			return fmt.Errorf("computing statistics for %s: %w", raster, err)
		}

		base := strings.TrimSuffix(filepath.Base(raster), ".img")
		if err := writeStatsFile(filepath.Join(statsDir, base+".stats"), bs); err != nil {
			return err
		}
	}

	ll.Info("generated statistics", slog.Int("bands", len(rasters)), slog.String("dir", statsDir))
	return nil
}

// Compute reads a raster of little-endian int16 samples and summarizes
// the non-fill pixels.
func Compute(path string) (*BandStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("raster %s has odd byte length %d", path, len(data))
	}

	bs := &BandStats{
		FileName: filepath.Base(path),
		Minimum:  math.Inf(1),
		Maximum:  math.Inf(-1),
	}

	// Two-pass mean/stddev keeps the arithmetic simple; rasters fit in
	// memory since they were just read whole.
	var sum float64
	values := make([]float64, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(data[i:])))
		if v == FillValue {
			continue
		}
		values = append(values, v)
		sum += v
		if v < bs.Minimum {
			bs.Minimum = v
		}
		if v > bs.Maximum {
			bs.Maximum = v
		}
	}

	bs.ValidPixels = len(values)
	if bs.ValidPixels == 0 {
		bs.Minimum, bs.Maximum = 0, 0
		return bs, nil
	}

	bs.Mean = sum / float64(bs.ValidPixels)
	var sq float64
	for _, v := range values {
		d := v - bs.Mean
		sq += d * d
	}
	bs.StdDev = math.Sqrt(sq / float64(bs.ValidPixels))
	return bs, nil
}

func writeStatsFile(path string, bs *BandStats) error {
	var b strings.Builder
	fmt.Fprintf(&b, "FILENAME: %s\n", bs.FileName)
	fmt.Fprintf(&b, "VALID PIXELS: %d\n", bs.ValidPixels)
	fmt.Fprintf(&b, "MINIMUM: %g\n", bs.Minimum)
	fmt.Fprintf(&b, "MAXIMUM: %g\n", bs.Maximum)
	fmt.Fprintf(&b, "MEAN: %g\n", bs.Mean)
	fmt.Fprintf(&b, "STDDEV: %g\n", bs.StdDev)
	return os.WriteFile(path, []byte(b.String()), 0644)
}
