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

package packaging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
}

func TestPackage(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, source, map[string]string{
		"band1.img":       "raster one",
		"band1.hdr":       "header one",
		"sub/extra.txt":   "nested",
		"product.xml":     "<espa_metadata/>",
	})

	art, err := Package(context.Background(), source, dest, "LE7038038-SC123")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, "LE7038038-SC123.tar.gz"), art.ArchivePath)
	assert.Equal(t, filepath.Join(dest, "LE7038038-SC123.md5"), art.ChecksumPath)
	assert.Len(t, art.Checksum, 32)

	members, err := Members(art.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"band1.hdr", "band1.img", "product.xml", "sub/extra.txt"}, members)

	require.NoError(t, Verify(art.ArchivePath, art.ChecksumPath))
}

func TestPackageEmptySource(t *testing.T) {
	_, err := Package(context.Background(), t.TempDir(), t.TempDir(), "empty")
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "no files")
}

func TestPackageIdempotent(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, source, map[string]string{"band1.img": "first run"})

	first, err := Package(context.Background(), source, dest, "prod")
	require.NoError(t, err)

	// Simulate a partial earlier run too.
	require.NoError(t, os.WriteFile(filepath.Join(dest, "prod.tar.gz.partial"), []byte("junk"), 0644))

	require.NoError(t, os.WriteFile(filepath.Join(source, "band2.img"), []byte("second run"), 0644))
	second, err := Package(context.Background(), source, dest, "prod")
	require.NoError(t, err)

	assert.NotEqual(t, first.Checksum, second.Checksum)
	assert.NoFileExists(t, filepath.Join(dest, "prod.tar.gz.partial"))

	members, err := Members(second.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"band1.img", "band2.img"}, members)
	require.NoError(t, Verify(second.ArchivePath, second.ChecksumPath))
}

func TestPackageUnchangedSourceIsByteIdentical(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, source, map[string]string{"band1.img": "stable", "band1.hdr": "stable too"})

	first, err := Package(context.Background(), source, dest, "prod")
	require.NoError(t, err)
	second, err := Package(context.Background(), source, dest, "prod")
	require.NoError(t, err)

	assert.Equal(t, first.Checksum, second.Checksum)
}

func TestChecksumSidecarFormat(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, source, map[string]string{"a.img": "data"})

	art, err := Package(context.Background(), source, dest, "prod")
	require.NoError(t, err)

	raw, err := os.ReadFile(art.ChecksumPath)
	require.NoError(t, err)
	assert.Equal(t, art.Checksum+"  prod.tar.gz\n", string(raw))

	digest, name, err := ParseChecksumFile(art.ChecksumPath)
	require.NoError(t, err)
	assert.Equal(t, art.Checksum, digest)
	assert.Equal(t, "prod.tar.gz", name)
}

func TestVerifyDetectsTampering(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, source, map[string]string{"a.img": "data"})

	art, err := Package(context.Background(), source, dest, "prod")
	require.NoError(t, err)

	f, err := os.OpenFile(art.ArchivePath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte("tamper"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = Verify(art.ArchivePath, art.ChecksumPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestVerifyRejectsWrongName(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "actual.tar.gz")
	require.NoError(t, os.WriteFile(archive, []byte("x"), 0644))

	digest, err := Checksum(archive)
	require.NoError(t, err)

	sidecar := filepath.Join(dir, "actual.md5")
	require.NoError(t, WriteChecksumFile(sidecar, digest, "other.tar.gz"))

	err = Verify(archive, sidecar)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum file names")
}

func TestParseChecksumFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.md5")
	require.NoError(t, os.WriteFile(path, []byte("only-one-field\n"), 0644))

	_, _, err := ParseChecksumFile(path)
	require.Error(t, err)
}
