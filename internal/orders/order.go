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

// Package orders defines the order parameters record the dispatcher hands
// to a worker, one JSON object per batch line.
package orders

import (
	"encoding/json"
	"fmt"
)

// Order is one product request. It is immutable after validation.
type Order struct {
	OrderID     string  `json:"orderid"`
	ProductID   string  `json:"scene"`
	ProductType string  `json:"product_type"`
	InputURL    string  `json:"download_url"`
	Options     Options `json:"options"`
}

// Extents is a requested output bounding box in the target projection
// units.
type Extents struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Options is the set of named flags driving which pipeline stages run.
// After ApplyDefaults every field has a concrete value; downstream code
// never observes an absent flag.
type Options struct {
	IncludeSourceData           bool `json:"include_source_data"`
	IncludeSourceMetadata       bool `json:"include_source_metadata"`
	IncludeCustomizedSourceData bool `json:"include_customized_source_data"`

	IncludeSurfaceReflectance bool `json:"include_sr"`
	IncludeTopOfAtmosphere    bool `json:"include_sr_toa"`
	IncludeBrightnessTemp     bool `json:"include_sr_thermal"`
	IncludeCloudMask          bool `json:"include_cfmask"`
	IncludeSurfaceWaterExtent bool `json:"include_dswe"`

	IncludeNDVI  bool `json:"include_sr_ndvi"`
	IncludeEVI   bool `json:"include_sr_evi"`
	IncludeSAVI  bool `json:"include_sr_savi"`
	IncludeMSAVI bool `json:"include_sr_msavi"`
	IncludeNDMI  bool `json:"include_sr_ndmi"`
	IncludeNBR   bool `json:"include_sr_nbr"`
	IncludeNBR2  bool `json:"include_sr_nbr2"`

	IncludeStatistics bool `json:"include_statistics"`

	// Customization. OutputFormat defaults to the internal raster format;
	// anything else triggers the reformat stage.
	OutputFormat     string   `json:"output_format"`
	Reproject        bool     `json:"reproject"`
	TargetProjection string   `json:"target_projection"`
	ResamplingMethod string   `json:"resample_method"`
	PixelSize        float64  `json:"pixel_size"`
	PixelSizeUnits   string   `json:"pixel_size_units"`
	ImageExtents     *Extents `json:"image_extents"`

	KeepIntermediateData bool `json:"keep_intermediate_data"`
}

// Known output formats. FormatENVI is the native format the science
// executables write; the others are produced by the reformat stage.
const (
	FormatENVI    = "envi"
	FormatGeoTIFF = "gtiff"
	FormatHDFEOS2 = "hdf-eos2"
	FormatNetCDF  = "netcdf"
)

// ParseBatchLine decodes one line of dispatcher batch input.
func ParseBatchLine(line []byte) (*Order, error) {
	var ord Order
	if err := json.Unmarshal(line, &ord); err != nil {
		return nil, fmt.Errorf("decoding order line: %w", err)
	}
	ord.Options.ApplyDefaults()
	return &ord, nil
}

// ApplyDefaults fills every optional field with its concrete default.
func (o *Options) ApplyDefaults() {
	if o.OutputFormat == "" {
		o.OutputFormat = FormatENVI
	}
	if o.ResamplingMethod == "" {
		o.ResamplingMethod = "near"
	}
	if o.PixelSizeUnits == "" {
		o.PixelSizeUnits = "meters"
	}
}

// RequestedIndices lists the spectral index products requested, in the
// order the index executable expects them.
func (o *Options) RequestedIndices() []string {
	var idx []string
	if o.IncludeNDVI {
		idx = append(idx, "ndvi")
	}
	if o.IncludeEVI {
		idx = append(idx, "evi")
	}
	if o.IncludeSAVI {
		idx = append(idx, "savi")
	}
	if o.IncludeMSAVI {
		idx = append(idx, "msavi")
	}
	if o.IncludeNDMI {
		idx = append(idx, "ndmi")
	}
	if o.IncludeNBR {
		idx = append(idx, "nbr")
	}
	if o.IncludeNBR2 {
		idx = append(idx, "nbr2")
	}
	return idx
}

// RequiresSurfaceReflectance reports whether surface reflectance must be
// computed, either because it was requested outright or because a product
// that consumes it was. This is a derived dependency, not a user flag.
func (o *Options) RequiresSurfaceReflectance() bool {
	return o.IncludeSurfaceReflectance ||
		o.IncludeTopOfAtmosphere ||
		o.IncludeBrightnessTemp ||
		o.IncludeSurfaceWaterExtent ||
		len(o.RequestedIndices()) > 0
}

// HasDerivedOutputs reports whether any science product must be built.
// An order with none skips the build and customize stages entirely but
// still runs cleanup and distribution.
func (o *Options) HasDerivedOutputs() bool {
	return o.RequiresSurfaceReflectance() || o.IncludeCloudMask
}

// NeedsCustomization reports whether the warp stage must run.
func (o *Options) NeedsCustomization() bool {
	return o.Reproject || o.ImageExtents != nil || o.PixelSize > 0 || o.IncludeCustomizedSourceData
}
