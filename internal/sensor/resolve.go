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

package sensor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Legacy Landsat IDs come back in the form LE70380381995175EDC00.
var legacyLandsatPattern = regexp.MustCompile(`^(LT4|LT5|LE7|LC8|LO8|LT8)(\d{3})(\d{3})(\d{4})(\d{3})([A-Z]{3})(\d{2})$`)

// Collection Landsat IDs look like LE07_L1TP_038038_19950624_20160302_01_T1.
// The processing level varies between three and four characters across
// pre-collection reprocessed scenes and collection scenes.
var collectionLandsatPattern = regexp.MustCompile(`^(LT04|LT05|LE07|LC08|LO08|LT08)_([A-Z0-9]{2,4})_(\d{3})(\d{3})_(\d{8})_(\d{8})_(\d{2})_(T1|T2|RT)$`)

// Tiled MODIS IDs look like MOD09A1.A2017123.h09v05.006.2017134123456.
var modisPattern = regexp.MustCompile(`^(M[OY]D)(09A1|09GA|09GQ|09Q1|11A1|13A1|13A2|13A3|13Q1)\.A(\d{4})(\d{3})\.h(\d{2})v(\d{2})\.(\d{3})\.(\d+)$`)

// Satellites without a thermal instrument cannot feed cloud masking or
// brightness temperature; the OLI-only and TIRS-only Landsat 8 variants
// are the two special cases.
var noThermalSatellites = map[string]bool{
	"LO8": true, "LO08": true,
}

var noReflectanceSatellites = map[string]bool{
	"LT8": true, "LT08": true,
}

// MODIS grid cell sizes in meters by product code.
var modisPixelSizes = map[string]float64{
	"09GQ": 250, "09Q1": 250, "13Q1": 250,
	"09A1": 500, "09GA": 500, "13A1": 500,
	"11A1": 1000, "13A2": 1000, "13A3": 1000,
}

// Resolve parses a product identifier into a sensor descriptor. The
// pattern table is ordered and the first match wins; an identifier that
// matches nothing is an UnsupportedSensorError.
func Resolve(productID string) (*Descriptor, error) {
	id := strings.TrimSpace(productID)

	if strings.EqualFold(id, "plot") {
		return &Descriptor{ProductID: id, Family: FamilyPlot, Satellite: "plot"}, nil
	}
	if m := collectionLandsatPattern.FindStringSubmatch(id); m != nil {
		return resolveCollectionLandsat(id, m)
	}
	if m := legacyLandsatPattern.FindStringSubmatch(id); m != nil {
		return resolveLegacyLandsat(id, m)
	}
	if m := modisPattern.FindStringSubmatch(id); m != nil {
		return resolveModis(id, m)
	}
	return nil, &UnsupportedSensorError{ProductID: productID}
}

func resolveLegacyLandsat(id string, m []string) (*Descriptor, error) {
	sat := m[1]
	path := mustAtoi(m[2])
	row := mustAtoi(m[3])
	year := mustAtoi(m[4])
	doy := mustAtoi(m[5])

	date := dateFromDOY(year, doy)
	if date.Year() != year {
		return nil, &UnsupportedSensorError{ProductID: id}
	}

	return &Descriptor{
		ProductID:         id,
		Family:            FamilyLandsatLegacy,
		Satellite:         sat,
		AcquisitionDate:   date,
		Year:              year,
		DayOfYear:         doy,
		Path:              path,
		Row:               row,
		DefaultPixelSize:  30,
		DefaultPixelUnits: "meters",
		HasThermal:        !noThermalSatellites[sat],
		HasReflectance:    !noReflectanceSatellites[sat],
		IsPreCollection:   true,
	}, nil
}

func resolveCollectionLandsat(id string, m []string) (*Descriptor, error) {
	sat := m[1]
	path := mustAtoi(m[3])
	row := mustAtoi(m[4])

	date, err := time.Parse("20060102", m[5])
	if err != nil {
		return nil, fmt.Errorf("parsing acquisition date of %q: %w", id, err)
	}

	return &Descriptor{
		ProductID:         id,
		Family:            FamilyLandsatCollection,
		Satellite:         sat,
		AcquisitionDate:   date,
		Year:              date.Year(),
		DayOfYear:         date.YearDay(),
		Path:              path,
		Row:               row,
		Collection:        m[7],
		Tier:              m[8],
		DefaultPixelSize:  30,
		DefaultPixelUnits: "meters",
		HasThermal:        !noThermalSatellites[sat],
		HasReflectance:    !noReflectanceSatellites[sat],
	}, nil
}

func resolveModis(id string, m []string) (*Descriptor, error) {
	product := m[2]
	year := mustAtoi(m[3])
	doy := mustAtoi(m[4])

	date := dateFromDOY(year, doy)
	if date.Year() != year {
		return nil, &UnsupportedSensorError{ProductID: id}
	}

	return &Descriptor{
		ProductID:         id,
		Family:            FamilyModis,
		Satellite:         m[1] + product,
		AcquisitionDate:   date,
		Year:              year,
		DayOfYear:         doy,
		HTile:             mustAtoi(m[5]),
		VTile:             mustAtoi(m[6]),
		Version:           m[7],
		DefaultPixelSize:  modisPixelSizes[product],
		DefaultPixelUnits: "meters",
	}, nil
}

// mustAtoi converts a digits-only regexp capture. The patterns guarantee
// the input is numeric.
func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic(fmt.Sprintf("non-numeric capture %q", s))
	}
	return n
}
