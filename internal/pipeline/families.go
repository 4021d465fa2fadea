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

package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/cardinalhq/scenerunner/internal/orders"
	"github.com/cardinalhq/scenerunner/internal/sensor"
)

// familyBehavior is the per-family variation table. Families differ only
// in these knobs plus the capability flags on the descriptor; the stage
// sequencing is shared.
type familyBehavior struct {
	// unpackInput extracts the staged archive into the work directory.
	// Tiled products arrive as single files and are copied through.
	unpackInput bool

	// cleanupGlobs name the intermediate files removed from the work
	// directory before packaging.
	cleanupGlobs []string
}

var behaviors = map[sensor.Family]familyBehavior{
	sensor.FamilyLandsatLegacy: {
		unpackInput:  true,
		cleanupGlobs: []string{"lndcal.*", "lndsr.*", "lndth.*", "*.aux.xml"},
	},
	sensor.FamilyLandsatCollection: {
		unpackInput:  true,
		cleanupGlobs: []string{"lndcal.*", "lndsr.*", "lndth.*", "*.aux.xml"},
	},
	sensor.FamilyModis: {},
	sensor.FamilyPlot:  {},
}

func behaviorFor(f sensor.Family) familyBehavior {
	return behaviors[f]
}

// ProductName generates the deliverable name for an order+product. The
// SC suffix carries the processing timestamp so re-runs never collide in
// the cache.
func ProductName(desc *sensor.Descriptor, orderID string, now time.Time) string {
	ts := now.Format("20060102150405")
	switch desc.Family {
	case sensor.FamilyLandsatLegacy, sensor.FamilyLandsatCollection:
		return fmt.Sprintf("%s%03d%03d%s-SC%s",
			desc.Satellite, desc.Path, desc.Row, desc.AcquisitionDate.Format("20060102"), ts)
	case sensor.FamilyModis:
		return strings.ReplaceAll(desc.ProductID, ".", "-") + "-SC" + ts
	default:
		return "statistics-" + orderID + "-SC" + ts
	}
}

// requestedProducts maps the order options to the manifest product codes
// that should remain in the package.
func requestedProducts(o *orders.Options) map[string]bool {
	m := map[string]bool{}
	if o.IncludeSourceData {
		m["L1"] = true
	}
	if o.IncludeSurfaceReflectance {
		m["sr_refl"] = true
	}
	if o.IncludeTopOfAtmosphere {
		m["toa_refl"] = true
	}
	if o.IncludeBrightnessTemp {
		m["toa_bt"] = true
	}
	if len(o.RequestedIndices()) > 0 {
		m["spectral_indices"] = true
	}
	if o.IncludeCloudMask {
		m["cfmask"] = true
	}
	if o.IncludeSurfaceWaterExtent {
		m["dswe"] = true
	}
	return m
}
