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
	"os"
	"path/filepath"
)

// Dirs is the directory trio owned by one pipeline run:
// <base>/<orderID>-<productID>/{stage,work,output}. The work directory is
// exclusively owned by the running pipeline instance; order+product
// uniqueness guarantees no collision between concurrent workers.
type Dirs struct {
	Root   string
	Stage  string
	Work   string
	Output string
}

// InitDirs creates the directory trio for an order+product.
func InitDirs(baseDir, orderID, productID string) (*Dirs, error) {
	root := filepath.Join(baseDir, orderID+"-"+productID)
	d := &Dirs{
		Root:   root,
		Stage:  filepath.Join(root, "stage"),
		Work:   filepath.Join(root, "work"),
		Output: filepath.Join(root, "output"),
	}
	for _, dir := range []string{d.Stage, d.Work, d.Output} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return d, nil
}

// Remove deletes the whole order directory tree. With keep set it leaves
// everything in place for debugging.
func (d *Dirs) Remove(keep bool) error {
	if keep {
		return nil
	}
	return os.RemoveAll(d.Root)
}
