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

package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/scenerunner/internal/sensor"
)

func mustResolve(t *testing.T, id string) *sensor.Descriptor {
	t.Helper()
	desc, err := sensor.Resolve(id)
	require.NoError(t, err)
	return desc
}

func validOrder(t *testing.T) (*Order, *sensor.Descriptor) {
	t.Helper()
	ord := &Order{
		OrderID:   "espa-user@host.test-0101703126789",
		ProductID: "LE70380381995175EDC00",
		InputURL:  "http://cache.test/l1/LE70380381995175EDC00.tar.gz",
	}
	ord.Options.ApplyDefaults()
	return ord, mustResolve(t, ord.ProductID)
}

func TestValidateOK(t *testing.T) {
	ord, desc := validOrder(t)
	ord.Options.IncludeSurfaceReflectance = true
	ord.Options.IncludeCloudMask = true
	require.NoError(t, Validate(ord, desc))
}

func TestValidateMissingFields(t *testing.T) {
	ord, desc := validOrder(t)
	ord.OrderID = ""
	ord.InputURL = ""

	err := Validate(ord, desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orderid")
	assert.Contains(t, err.Error(), "download_url")
}

func TestValidatePlotNeedsNoInputURL(t *testing.T) {
	ord := &Order{OrderID: "ord-1", ProductID: "plot"}
	ord.Options.ApplyDefaults()
	ord.Options.IncludeStatistics = true
	require.NoError(t, Validate(ord, mustResolve(t, "plot")))
}

func TestValidateParameterRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		want   string
	}{
		{"bad format", func(o *Options) { o.OutputFormat = "jpeg" }, "output_format"},
		{"bad resampling", func(o *Options) { o.ResamplingMethod = "lanczos" }, "resample_method"},
		{"bad projection", func(o *Options) { o.Reproject = true; o.TargetProjection = "mercator" }, "target_projection"},
		{"pixel size too small", func(o *Options) { o.PixelSize = 5 }, "pixel_size"},
		{"pixel size too large", func(o *Options) { o.PixelSize = 5000 }, "pixel_size"},
		{"inverted extents", func(o *Options) {
			o.ImageExtents = &Extents{North: 10, South: 20, East: 30, West: 20}
		}, "north must be greater than south"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ord, desc := validOrder(t)
			tt.mutate(&ord.Options)
			err := Validate(ord, desc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateCapabilities(t *testing.T) {
	tests := []struct {
		name      string
		productID string
		mutate    func(*Options)
		want      string
	}{
		{
			"derived products on modis",
			"MOD09A1.A2017123.h09v05.006.2017134123456",
			func(o *Options) { o.IncludeSurfaceReflectance = true },
			"supports no derived products",
		},
		{
			"cloud mask without thermal",
			"LO80380382017123EDC00",
			func(o *Options) { o.IncludeCloudMask = true },
			"no thermal band",
		},
		{
			"brightness temp without thermal",
			"LO08_L1TP_038038_20170503_20170515_01_T1",
			func(o *Options) { o.IncludeBrightnessTemp = true },
			"no thermal band",
		},
		{
			"indices without reflectance",
			"LT80380382017123EDC00",
			func(o *Options) { o.IncludeNDVI = true },
			"no reflective bands",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ord := &Order{
				OrderID:   "ord-1",
				ProductID: tt.productID,
				InputURL:  "http://cache.test/l1/input.tar.gz",
			}
			ord.Options.ApplyDefaults()
			tt.mutate(&ord.Options)

			err := Validate(ord, mustResolve(t, tt.productID))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
			assert.Equal(t, "ord-1", verr.OrderID)
		})
	}
}

func TestValidateSourceDataOnlyIsFine(t *testing.T) {
	// An order that requests no science products at all is still valid;
	// the pipeline packages the source data unchanged.
	ord := &Order{
		OrderID:   "ord-1",
		ProductID: "MOD09A1.A2017123.h09v05.006.2017134123456",
		InputURL:  "http://cache.test/l1/MOD09A1.hdf",
	}
	ord.Options.ApplyDefaults()
	ord.Options.IncludeSourceData = true
	require.NoError(t, Validate(ord, mustResolve(t, ord.ProductID)))
}
