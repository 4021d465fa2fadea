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

// Package packaging archives a product directory into a single compressed
// artifact with a checksum sidecar. Packaging is idempotent: re-running
// it removes any stale artifact sharing the same name prefix first.
package packaging

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cardinalhq/scenerunner/internal/logctx"
)

// Error is an archive or content-verification failure. It is retried at
// the packaging sub-level by the distribution engine, then fatal.
type Error struct {
	Archive string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("packaging %s: %v", e.Archive, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Artifact is the packaged deliverable: the archive, its checksum sidecar
// and the checksum value the sidecar records.
type Artifact struct {
	ArchivePath  string
	ChecksumPath string
	Checksum     string
}

// Package archives every file under sourceDir into destDir/baseName.tar.gz,
// verifies the archive member list against the source file set, and
// writes a baseName.md5 sidecar. All paths inside the archive are
// relative to sourceDir; the process working directory is never touched.
func Package(ctx context.Context, sourceDir, destDir, baseName string) (*Artifact, error) {
	ll := logctx.FromContext(ctx)

	archivePath := filepath.Join(destDir, baseName+".tar.gz")

	if err := removeStale(destDir, baseName); err != nil {
		return nil, &Error{Archive: archivePath, Err: err}
	}

	files, err := listFiles(sourceDir)
	if err != nil {
		return nil, &Error{Archive: archivePath, Err: err}
	}
	if len(files) == 0 {
		return nil, &Error{Archive: archivePath, Err: fmt.Errorf("no files under %s", sourceDir)}
	}

	if err := writeArchive(archivePath, sourceDir, files); err != nil {
		_ = os.Remove(archivePath)
		return nil, &Error{Archive: archivePath, Err: err}
	}

	if err := verifyMembers(archivePath, files); err != nil {
		_ = os.Remove(archivePath)
		return nil, &Error{Archive: archivePath, Err: err}
	}

	digest, err := Checksum(archivePath)
	if err != nil {
		return nil, &Error{Archive: archivePath, Err: err}
	}

	checksumPath := filepath.Join(destDir, baseName+".md5")
	if err := WriteChecksumFile(checksumPath, digest, filepath.Base(archivePath)); err != nil {
		return nil, &Error{Archive: archivePath, Err: err}
	}

	ll.Info("packaged product",
		slog.String("archive", archivePath),
		slog.String("checksum", digest),
		slog.Int("files", len(files)),
	)
	return &Artifact{ArchivePath: archivePath, ChecksumPath: checksumPath, Checksum: digest}, nil
}

// removeStale deletes any earlier artifact sharing the base name prefix
// so a re-run can never deliver a mix of old and new files.
func removeStale(destDir, baseName string) error {
	matches, err := filepath.Glob(filepath.Join(destDir, baseName+"*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale artifact %s: %w", m, err)
		}
	}
	return nil
}

// listFiles returns the sorted, slash-separated relative paths of every
// regular file under dir.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func writeArchive(archivePath, sourceDir string, files []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for _, rel := range files {
		if err := addFile(tw, sourceDir, rel); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return out.Close()
}

func addFile(tw *tar.Writer, sourceDir, rel string) error {
	full := filepath.Join(sourceDir, filepath.FromSlash(rel))
	fi, err := os.Stat(full)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return err
	}
	hdr.Name = rel

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	f, err := os.Open(full)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(tw, f); err != nil {
		return err
	}
	return nil
}

// verifyMembers compares the archive member set against the source file
// set. Any difference in either direction means the archive does not
// represent the directory and must not ship.
func verifyMembers(archivePath string, want []string) error {
	got, err := Members(archivePath)
	if err != nil {
		return err
	}

	wantSet := make(map[string]bool, len(want))
	for _, f := range want {
		wantSet[f] = true
	}
	gotSet := make(map[string]bool, len(got))
	for _, f := range got {
		gotSet[f] = true
	}

	var missing, extra []string
	for f := range wantSet {
		if !gotSet[f] {
			missing = append(missing, f)
		}
	}
	for f := range gotSet {
		if !wantSet[f] {
			extra = append(extra, f)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return fmt.Errorf("archive content mismatch: missing %v, extra %v", missing, extra)
	}
	return nil
}

// Members lists the regular-file member names of a tar.gz archive.
func Members(archivePath string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = gz.Close() }()

	var members []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag == tar.TypeReg {
			members = append(members, hdr.Name)
		}
	}
	sort.Strings(members)
	return members, nil
}

// Checksum computes the hex md5 digest of a file's contents.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteChecksumFile writes the md5sum-format sidecar: the digest, two
// spaces, and the artifact basename.
func WriteChecksumFile(path, digest, name string) error {
	return os.WriteFile(path, []byte(digest+"  "+name+"\n"), 0644)
}

// ParseChecksumFile reads a sidecar and returns the digest and filename.
func ParseChecksumFile(path string) (digest, name string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return "", "", fmt.Errorf("malformed checksum file %s", path)
	}
	return fields[0], fields[1], nil
}

// Verify recomputes an artifact's digest and compares it to its sidecar.
func Verify(archivePath, checksumPath string) error {
	want, name, err := ParseChecksumFile(checksumPath)
	if err != nil {
		return err
	}
	if name != filepath.Base(archivePath) {
		return fmt.Errorf("checksum file names %q, not %q", name, filepath.Base(archivePath))
	}
	got, err := Checksum(archivePath)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("checksum mismatch for %s: have %s, want %s", archivePath, got, want)
	}
	return nil
}
