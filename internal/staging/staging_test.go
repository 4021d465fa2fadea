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

package staging

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestStageLocalFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "input.tar.gz")
	require.NoError(t, os.WriteFile(src, []byte("archive bytes"), 0644))

	stageDir := t.TempDir()
	local, err := New().Stage(context.Background(), "file://"+src, stageDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(stageDir, "input.tar.gz"), local)

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(data))
}

func TestStageBarePath(t *testing.T) {
	src := filepath.Join(t.TempDir(), "scene.hdf")
	require.NoError(t, os.WriteFile(src, []byte("hdf"), 0644))

	stageDir := t.TempDir()
	local, err := New().Stage(context.Background(), src, stageDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(stageDir, "scene.hdf"), local)
}

func TestStageHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/l1/scene.tar.gz", r.URL.Path)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	stageDir := t.TempDir()
	local, err := New().Stage(context.Background(), srv.URL+"/l1/scene.tar.gz", stageDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(stageDir, "scene.tar.gz"), local)

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestStageHTTPNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New().Stage(context.Background(), srv.URL+"/missing.tar.gz", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestStageUnsupportedScheme(t *testing.T) {
	_, err := New().Stage(context.Background(), "ftp://host/file", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported input url scheme")
}

func TestUnpackArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "scene.tar.gz")
	makeArchive(t, archive, map[string]string{
		"band1.img":  "one",
		"band1.hdr":  "two",
		"scene.xml":  "<espa_metadata/>",
	})

	work := t.TempDir()
	require.NoError(t, Unpack(context.Background(), archive, work))

	for name, content := range map[string]string{
		"band1.img": "one",
		"band1.hdr": "two",
		"scene.xml": "<espa_metadata/>",
	} {
		data, err := os.ReadFile(filepath.Join(work, name))
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	}
}

func TestUnpackRejectsTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	makeArchive(t, archive, map[string]string{"../escape.txt": "nope"})

	err := Unpack(context.Background(), archive, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsafe member")
}

func TestUnpackCopiesNonArchive(t *testing.T) {
	src := filepath.Join(t.TempDir(), "MOD09A1.hdf")
	require.NoError(t, os.WriteFile(src, []byte("tile"), 0644))

	work := t.TempDir()
	require.NoError(t, Unpack(context.Background(), src, work))

	data, err := os.ReadFile(filepath.Join(work, "MOD09A1.hdf"))
	require.NoError(t, err)
	assert.Equal(t, "tile", string(data))
}
