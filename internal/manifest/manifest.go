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

// Package manifest reads and rewrites the product's XML metadata
// manifest, keeping the band list consistent with the files that
// actually ship.
package manifest

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Band is one raster band entry in the manifest.
type Band struct {
	Product  string `xml:"product,attr"`
	Name     string `xml:"name,attr"`
	Category string `xml:"category,attr,omitempty"`
	FileName string `xml:"file_name"`
}

// Global carries the acquisition metadata the pipeline cares about;
// everything else in the section is preserved opaquely by the science
// tools that wrote it.
type Global struct {
	Satellite       string `xml:"satellite"`
	Instrument      string `xml:"instrument"`
	AcquisitionDate string `xml:"acquisition_date"`
}

// Metadata is the product manifest.
type Metadata struct {
	XMLName xml.Name `xml:"espa_metadata"`
	Version string   `xml:"version,attr,omitempty"`
	Global  Global   `xml:"global_metadata"`
	Bands   []Band   `xml:"bands>band"`

	path string
}

// Load parses the manifest at path.
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	m.path = path
	return &m, nil
}

// Find locates the product manifest in a work directory: the one XML
// file whose name matches the product identifier prefix.
func Find(workDir, productID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(workDir, "*.xml"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), productID) {
			return m, nil
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return "", fmt.Errorf("no manifest found in %s", workDir)
}

// Save rewrites the manifest in place.
func (m *Metadata) Save() error {
	data, err := xml.MarshalIndent(m, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, append([]byte(xml.Header), append(data, '\n')...), 0644)
}

// Bands that stay in the package no matter what was requested.
var alwaysRetainedBands = map[string]bool{
	"pixel_qa": true,
}

// Bands retained whenever any reflectance-derived product was requested,
// because interpreting those products requires them.
var reflectanceQABands = map[string]bool{
	"radsat_qa":        true,
	"sr_saturation_qa": true,
	"sr_atmos_opacity": true,
}

// Prune removes band entries whose product was not requested, deleting
// the band files (and their ENVI headers) from workDir. The retained set
// honors the documented allow-list.
func (m *Metadata) Prune(workDir string, requestedProducts map[string]bool, reflectanceRequested bool) ([]string, error) {
	var kept []Band
	var removed []string

	for _, b := range m.Bands {
		if requestedProducts[b.Product] ||
			alwaysRetainedBands[b.Name] ||
			(reflectanceRequested && reflectanceQABands[b.Name]) {
			kept = append(kept, b)
			continue
		}
		removed = append(removed, b.FileName)
	}
	m.Bands = kept

	for _, f := range removed {
		full := filepath.Join(workDir, f)
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing pruned band %s: %w", full, err)
		}
		// ENVI rasters carry a sidecar header.
		hdr := strings.TrimSuffix(full, filepath.Ext(full)) + ".hdr"
		if err := os.Remove(hdr); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing pruned band header %s: %w", hdr, err)
		}
	}

	return removed, m.Save()
}
