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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDirs(t *testing.T) {
	base := t.TempDir()

	d, err := InitDirs(base, "order-1", legacyScene)
	require.NoError(t, err)

	root := filepath.Join(base, "order-1-"+legacyScene)
	assert.Equal(t, root, d.Root)
	assert.DirExists(t, filepath.Join(root, "stage"))
	assert.DirExists(t, filepath.Join(root, "work"))
	assert.DirExists(t, filepath.Join(root, "output"))
}

func TestInitDirsDistinctPerProduct(t *testing.T) {
	base := t.TempDir()

	a, err := InitDirs(base, "order-1", legacyScene)
	require.NoError(t, err)
	b, err := InitDirs(base, "order-1", "plot")
	require.NoError(t, err)

	assert.NotEqual(t, a.Root, b.Root)
}

func TestDirsRemove(t *testing.T) {
	base := t.TempDir()
	d, err := InitDirs(base, "order-1", legacyScene)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(d.Work, "band.img"), []byte("x"), 0644))

	require.NoError(t, d.Remove(false))
	assert.NoDirExists(t, d.Root)
}

func TestDirsRemoveKeep(t *testing.T) {
	base := t.TempDir()
	d, err := InitDirs(base, "order-1", legacyScene)
	require.NoError(t, err)

	require.NoError(t, d.Remove(true))
	assert.DirExists(t, d.Root)
}
