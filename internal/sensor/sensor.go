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

// Package sensor resolves product identifiers into sensor descriptors.
// Resolution is a pure function over an ordered table of identifier
// patterns; it performs no I/O.
package sensor

import (
	"fmt"
	"time"
)

// Family groups identifier formats that share parsing rules and default
// processing behavior.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyLandsatLegacy
	FamilyLandsatCollection
	FamilyModis
	FamilyPlot
)

func (f Family) String() string {
	switch f {
	case FamilyLandsatLegacy:
		return "landsat-legacy"
	case FamilyLandsatCollection:
		return "landsat-collection"
	case FamilyModis:
		return "modis"
	case FamilyPlot:
		return "plot"
	default:
		return "unknown"
	}
}

// Descriptor is the read-only record derived from a product identifier.
// It is computed once at pipeline start and never mutated.
type Descriptor struct {
	ProductID string
	Family    Family

	// Satellite is the normalized satellite/instrument code, e.g. "LE07"
	// for legacy and collection Landsat 7 inputs, "MOD09A1" for MODIS.
	Satellite string

	AcquisitionDate time.Time
	Year            int
	DayOfYear       int

	// Landsat scene coordinates.
	Path int
	Row  int

	// MODIS tile coordinates.
	HTile int
	VTile int

	// Collection is the Landsat collection number ("01", "02"), empty for
	// pre-collection inputs. Tier is the collection tier ("T1", "T2",
	// "RT"). Version is the MODIS collection version ("006").
	Collection string
	Tier       string
	Version    string

	DefaultPixelSize  float64
	DefaultPixelUnits string

	// Capability flags. Stages consult these instead of probing for the
	// data they would need; a missing capability is a skip or a
	// validation error, never a runtime surprise.
	HasThermal      bool
	HasReflectance  bool
	IsPreCollection bool
}

// SupportsDerivedProducts reports whether any science products can be
// generated for this sensor. MODIS and plot inputs arrive already
// processed; only customization and statistics apply to them.
func (d *Descriptor) SupportsDerivedProducts() bool {
	return d.Family == FamilyLandsatLegacy || d.Family == FamilyLandsatCollection
}

// SupportsCloudMasking reports whether a cloud mask can be built. The
// masking algorithm needs a thermal band.
func (d *Descriptor) SupportsCloudMasking() bool {
	return d.SupportsDerivedProducts() && d.HasThermal
}

// UnsupportedSensorError indicates a product identifier that matched no
// known sensor pattern. It is fatal and never retried.
type UnsupportedSensorError struct {
	ProductID string
}

func (e *UnsupportedSensorError) Error() string {
	return fmt.Sprintf("unsupported sensor product: %q", e.ProductID)
}

// dateFromDOY converts year plus day-of-year to a calendar date.
func dateFromDOY(year, doy int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
}
