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
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/scenerunner/internal/sensor"
)

// ValidationError wraps every problem found with an order's parameters.
// It is fatal and never retried.
type ValidationError struct {
	OrderID   string
	ProductID string
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order %s product %s: invalid parameters: %v", e.OrderID, e.ProductID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

var validFormats = map[string]bool{
	FormatENVI:    true,
	FormatGeoTIFF: true,
	FormatHDFEOS2: true,
	FormatNetCDF:  true,
}

var validProjections = map[string]bool{
	"utm": true, "lonlat": true, "aea": true, "ps": true, "sinu": true,
}

var validResampling = map[string]bool{
	"near": true, "bilinear": true, "cubic": true,
}

// Validate checks the order against the resolved sensor descriptor.
// Every requested-but-unbuildable combination is rejected here with a
// descriptive error; the pipeline never silently produces an incomplete
// package. Callers must ApplyDefaults first.
func Validate(ord *Order, desc *sensor.Descriptor) error {
	var errs *multierror.Error

	if ord.OrderID == "" {
		errs = multierror.Append(errs, fmt.Errorf("orderid must not be empty"))
	}
	if ord.ProductID == "" {
		errs = multierror.Append(errs, fmt.Errorf("scene must not be empty"))
	}
	if ord.InputURL == "" && desc.Family != sensor.FamilyPlot {
		errs = multierror.Append(errs, fmt.Errorf("download_url must not be empty"))
	}

	o := &ord.Options
	if !validFormats[o.OutputFormat] {
		errs = multierror.Append(errs, fmt.Errorf("unknown output_format %q", o.OutputFormat))
	}
	if !validResampling[o.ResamplingMethod] {
		errs = multierror.Append(errs, fmt.Errorf("unknown resample_method %q", o.ResamplingMethod))
	}
	if o.Reproject && !validProjections[o.TargetProjection] {
		errs = multierror.Append(errs, fmt.Errorf("unknown target_projection %q", o.TargetProjection))
	}
	if o.PixelSize != 0 && (o.PixelSize < 10 || o.PixelSize > 1000) {
		errs = multierror.Append(errs, fmt.Errorf("pixel_size %v out of range [10, 1000]", o.PixelSize))
	}
	if o.ImageExtents != nil {
		if o.ImageExtents.North <= o.ImageExtents.South {
			errs = multierror.Append(errs, fmt.Errorf("image_extents north must be greater than south"))
		}
		if o.ImageExtents.East <= o.ImageExtents.West {
			errs = multierror.Append(errs, fmt.Errorf("image_extents east must be greater than west"))
		}
	}

	// Capability checks. The descriptor says what the sensor can feed;
	// anything requested beyond that is a hard rejection.
	if o.HasDerivedOutputs() && !desc.SupportsDerivedProducts() {
		errs = multierror.Append(errs, fmt.Errorf("sensor family %s supports no derived products", desc.Family))
	}
	if desc.SupportsDerivedProducts() {
		if o.IncludeCloudMask && !desc.HasThermal {
			errs = multierror.Append(errs, fmt.Errorf("cloud masking requested but %s has no thermal band", desc.Satellite))
		}
		if o.IncludeBrightnessTemp && !desc.HasThermal {
			errs = multierror.Append(errs, fmt.Errorf("brightness temperature requested but %s has no thermal band", desc.Satellite))
		}
		if o.RequiresSurfaceReflectance() && !desc.HasReflectance {
			errs = multierror.Append(errs, fmt.Errorf("surface reflectance required but %s has no reflective bands", desc.Satellite))
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return &ValidationError{OrderID: ord.OrderID, ProductID: ord.ProductID, Err: err}
	}
	return nil
}
