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

// Package science constructs the external command invocations for the
// per-sensor science stages. The executables themselves are opaque; this
// package only decides which ones run, in what order, with what flags.
package science

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/scenerunner/internal/orders"
	"github.com/cardinalhq/scenerunner/internal/sensor"
)

// Invocation is one external command to run in the order's work
// directory.
type Invocation struct {
	Name string
	Args []string
}

// Stage keys used in the command table.
const (
	StageSurfaceReflectanceETM = "surface_reflectance_etm"
	StageSurfaceReflectanceOLI = "surface_reflectance_oli"
	StageSpectralIndices       = "spectral_indices"
	StageCloudMask             = "cloud_mask"
	StageDilateCloudMask       = "dilate_cloud_mask"
	StageWaterExtent           = "water_extent"
	StageWarp                  = "warp"
	StageConvertGeoTIFF        = "convert_gtiff"
	StageConvertHDF            = "convert_hdf"
	StageConvertNetCDF         = "convert_netcdf"
)

// Table maps stage keys to executable names. Deployments override
// entries from a YAML file when executables are renamed or wrapped.
type Table struct {
	commands map[string]string
}

// DefaultTable returns the stock executable names.
func DefaultTable() *Table {
	return &Table{commands: map[string]string{
		StageSurfaceReflectanceETM: "do_ledaps",
		StageSurfaceReflectanceOLI: "do_lasrc",
		StageSpectralIndices:       "do_spectral_indices",
		StageCloudMask:             "do_cloud_mask",
		StageDilateCloudMask:       "do_dilate_cloud_mask",
		StageWaterExtent:           "do_water_extent",
		StageWarp:                  "gdalwarp",
		StageConvertGeoTIFF:        "convert_espa_to_gtiff",
		StageConvertHDF:            "convert_espa_to_hdf",
		StageConvertNetCDF:         "convert_espa_to_netcdf",
	}}
}

// LoadTable returns the default table with overrides applied from the
// given YAML file, a flat mapping of stage key to executable name.
func LoadTable(path string) (*Table, error) {
	t := DefaultTable()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading command table %s: %w", path, err)
	}
	overrides := map[string]string{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing command table %s: %w", path, err)
	}
	for stage, executable := range overrides {
		if _, ok := t.commands[stage]; !ok {
			return nil, fmt.Errorf("command table %s overrides unknown stage %q", path, stage)
		}
		t.commands[stage] = executable
	}
	return t, nil
}

func (t *Table) executable(stage string) string {
	return t.commands[stage]
}

// BuildCommands returns the science invocations for an order, in
// execution order. Surface reflectance runs whenever anything downstream
// of it was requested, not only on an explicit request. Cloud-mask
// dilation is unconditionally skipped for pre-collection inputs, which
// lack the quality band it operates on.
func (t *Table) BuildCommands(desc *sensor.Descriptor, opts *orders.Options, metadataFile string) []Invocation {
	if !desc.SupportsDerivedProducts() {
		return nil
	}

	var invs []Invocation

	if opts.RequiresSurfaceReflectance() {
		stage := StageSurfaceReflectanceETM
		if desc.Satellite == "LC8" || desc.Satellite == "LC08" || desc.Satellite == "LO8" || desc.Satellite == "LO08" {
			stage = StageSurfaceReflectanceOLI
		}
		args := []string{"--xml", metadataFile}
		if opts.IncludeSurfaceReflectance {
			args = append(args, "--write-sr")
		}
		if opts.IncludeTopOfAtmosphere {
			args = append(args, "--write-toa")
		}
		if opts.IncludeBrightnessTemp {
			args = append(args, "--write-bt")
		}
		invs = append(invs, Invocation{Name: t.executable(stage), Args: args})
	}

	if idx := opts.RequestedIndices(); len(idx) > 0 {
		args := []string{"--xml", metadataFile}
		for _, i := range idx {
			args = append(args, "--"+i)
		}
		invs = append(invs, Invocation{Name: t.executable(StageSpectralIndices), Args: args})
	}

	if opts.IncludeCloudMask {
		invs = append(invs, Invocation{
			Name: t.executable(StageCloudMask),
			Args: []string{"--xml", metadataFile},
		})
		if !desc.IsPreCollection {
			invs = append(invs, Invocation{
				Name: t.executable(StageDilateCloudMask),
				Args: []string{"--xml", metadataFile, "--distance", "3"},
			})
		}
	}

	if opts.IncludeSurfaceWaterExtent {
		invs = append(invs, Invocation{
			Name: t.executable(StageWaterExtent),
			Args: []string{"--xml", metadataFile},
		})
	}

	return invs
}

// WarpCommand builds the reprojection/resize invocation for one band
// file. The warp engine is an external collaborator; only the argument
// list is owned here.
func (t *Table) WarpCommand(desc *sensor.Descriptor, opts *orders.Options, src, dst string) Invocation {
	args := []string{"-r", opts.ResamplingMethod}

	if opts.Reproject {
		args = append(args, "-t_srs", projectionSRS(opts.TargetProjection))
	}

	ps := opts.PixelSize
	if ps == 0 {
		ps = desc.DefaultPixelSize
	}
	args = append(args, "-tr", fmt.Sprintf("%g", ps), fmt.Sprintf("%g", ps))

	if e := opts.ImageExtents; e != nil {
		args = append(args,
			"-te",
			fmt.Sprintf("%g", e.West), fmt.Sprintf("%g", e.South),
			fmt.Sprintf("%g", e.East), fmt.Sprintf("%g", e.North),
		)
	}

	args = append(args, src, dst)
	return Invocation{Name: t.executable(StageWarp), Args: args}
}

// projectionSRS maps the order's projection keyword to the SRS argument
// the warp tool accepts.
func projectionSRS(projection string) string {
	switch projection {
	case "lonlat":
		return "EPSG:4326"
	case "sinu":
		return "ESRI:53008"
	case "aea":
		return "EPSG:5070"
	case "ps":
		return "EPSG:3031"
	default:
		// utm: the zone is carried in the source metadata, the warp tool
		// keeps it when only a datum is given.
		return "EPSG:32600"
	}
}

// ReformatCommand returns the converter invocation for a non-native
// output format, or nil for the native format.
func (t *Table) ReformatCommand(opts *orders.Options, metadataFile string) *Invocation {
	var stage string
	switch opts.OutputFormat {
	case orders.FormatGeoTIFF:
		stage = StageConvertGeoTIFF
	case orders.FormatHDFEOS2:
		stage = StageConvertHDF
	case orders.FormatNetCDF:
		stage = StageConvertNetCDF
	default:
		return nil
	}
	return &Invocation{
		Name: t.executable(stage),
		Args: []string{"--xml", metadataFile, "--del-src-files"},
	}
}
