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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLegacyLandsat(t *testing.T) {
	desc, err := Resolve("LE70380381995175EDC00")
	require.NoError(t, err)

	assert.Equal(t, FamilyLandsatLegacy, desc.Family)
	assert.Equal(t, "LE7", desc.Satellite)
	assert.Equal(t, 38, desc.Path)
	assert.Equal(t, 38, desc.Row)
	assert.Equal(t, 1995, desc.Year)
	assert.Equal(t, 175, desc.DayOfYear)
	assert.Equal(t, time.Date(1995, time.June, 24, 0, 0, 0, 0, time.UTC), desc.AcquisitionDate)
	assert.Equal(t, 30.0, desc.DefaultPixelSize)
	assert.True(t, desc.IsPreCollection)
	assert.True(t, desc.HasThermal)
	assert.True(t, desc.HasReflectance)
	assert.True(t, desc.SupportsDerivedProducts())
}

func TestResolveCollectionLandsat(t *testing.T) {
	desc, err := Resolve("LE07_L1TP_038038_19950624_20160302_01_T1")
	require.NoError(t, err)

	assert.Equal(t, FamilyLandsatCollection, desc.Family)
	assert.Equal(t, "LE07", desc.Satellite)
	assert.Equal(t, 38, desc.Path)
	assert.Equal(t, 38, desc.Row)
	assert.Equal(t, "01", desc.Collection)
	assert.Equal(t, "T1", desc.Tier)
	assert.Equal(t, time.Date(1995, time.June, 24, 0, 0, 0, 0, time.UTC), desc.AcquisitionDate)
	assert.False(t, desc.IsPreCollection)
}

func TestResolveCollectionShortLevel(t *testing.T) {
	// Reprocessed pre-collection scenes carry a three-character level.
	desc, err := Resolve("LE07_L1T_038038_19950624_20160302_01_T1")
	require.NoError(t, err)
	assert.Equal(t, FamilyLandsatCollection, desc.Family)
}

func TestResolveModis(t *testing.T) {
	desc, err := Resolve("MOD09A1.A2017123.h09v05.006.2017134123456")
	require.NoError(t, err)

	assert.Equal(t, FamilyModis, desc.Family)
	assert.Equal(t, "MOD09A1", desc.Satellite)
	assert.Equal(t, 2017, desc.Year)
	assert.Equal(t, 123, desc.DayOfYear)
	assert.Equal(t, 9, desc.HTile)
	assert.Equal(t, 5, desc.VTile)
	assert.Equal(t, "006", desc.Version)
	assert.Equal(t, 500.0, desc.DefaultPixelSize)
	assert.False(t, desc.SupportsDerivedProducts())
}

func TestResolveModisPixelSizes(t *testing.T) {
	tests := []struct {
		id   string
		size float64
	}{
		{"MOD09GQ.A2017123.h09v05.006.2017134123456", 250},
		{"MYD13Q1.A2017123.h09v05.006.2017134123456", 250},
		{"MYD11A1.A2017123.h09v05.006.2017134123456", 1000},
		{"MOD13A3.A2017123.h09v05.006.2017134123456", 1000},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			desc, err := Resolve(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.size, desc.DefaultPixelSize)
		})
	}
}

func TestResolvePlot(t *testing.T) {
	for _, id := range []string{"plot", "PLOT", "Plot"} {
		desc, err := Resolve(id)
		require.NoError(t, err)
		assert.Equal(t, FamilyPlot, desc.Family)
	}
}

func TestResolveCapabilityFlags(t *testing.T) {
	tests := []struct {
		id             string
		hasThermal     bool
		hasReflectance bool
	}{
		{"LO80380382017123EDC00", false, true},
		{"LT80380382017123EDC00", true, false},
		{"LO08_L1TP_038038_20170503_20170515_01_T1", false, true},
		{"LT08_L1TP_038038_20170503_20170515_01_T1", true, false},
		{"LC80380382017123EDC00", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			desc, err := Resolve(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.hasThermal, desc.HasThermal, "thermal")
			assert.Equal(t, tt.hasReflectance, desc.HasReflectance, "reflectance")
		})
	}
}

func TestResolveUnsupported(t *testing.T) {
	tests := []string{
		"",
		"SENTINEL2A_MSI_20170503",
		"LE7038038199517EDC00",                       // truncated day of year
		"LE99_L1TP_038038_19950624_20160302_01_T1",   // unknown satellite
		"MOD99A9.A2017123.h09v05.006.2017134123456",  // unknown product code
		"LE07_L1TP_038038_19950624_20160302_01_T9",   // bad tier
		"LE70380381995999EDC00",                      // day of year overflows the year
		"MOD09A1.A2017400.h09v05.006.2017134123456",  // same, tiled form
	}
	for _, id := range tests {
		t.Run(id, func(t *testing.T) {
			_, err := Resolve(id)
			var use *UnsupportedSensorError
			require.Error(t, err)
			assert.True(t, errors.As(err, &use), "expected UnsupportedSensorError, got %v", err)
		})
	}
}

func TestResolveDateRoundTrip(t *testing.T) {
	// Leap day: 2016 day 60 is February 29.
	desc, err := Resolve("LC80380382016060EDC00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, time.February, 29, 0, 0, 0, 0, time.UTC), desc.AcquisitionDate)
	assert.Equal(t, desc.Year, desc.AcquisitionDate.Year())
	assert.Equal(t, desc.DayOfYear, desc.AcquisitionDate.YearDay())
}

func TestSupportsCloudMasking(t *testing.T) {
	withThermal, err := Resolve("LC80380382017123EDC00")
	require.NoError(t, err)
	assert.True(t, withThermal.SupportsCloudMasking())

	noThermal, err := Resolve("LO80380382017123EDC00")
	require.NoError(t, err)
	assert.False(t, noThermal.SupportsCloudMasking())

	modis, err := Resolve("MOD09A1.A2017123.h09v05.006.2017134123456")
	require.NoError(t, err)
	assert.False(t, modis.SupportsCloudMasking())
}
