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

// Package staging downloads raw input data into an order's stage
// directory and unpacks archived inputs into its work directory.
package staging

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cardinalhq/scenerunner/internal/logctx"
)

// Stager fetches order input by URL. The s3 scheme is served by a lazily
// constructed S3 client; http(s) and file inputs need no setup.
type Stager struct {
	s3 s3Downloader

	// httpClient is replaceable for tests.
	httpClient *http.Client
}

func New() *Stager {
	return &Stager{httpClient: http.DefaultClient}
}

// Stage downloads the input at inputURL into stageDir and returns the
// local filename. Supported schemes: s3, http, https, file, and bare
// paths.
func (s *Stager) Stage(ctx context.Context, inputURL, stageDir string) (string, error) {
	ll := logctx.FromContext(ctx)

	u, err := url.Parse(inputURL)
	if err != nil {
		return "", fmt.Errorf("parsing input url %q: %w", inputURL, err)
	}

	var local string
	switch u.Scheme {
	case "s3":
		local, err = s.stageS3(ctx, u, stageDir)
	case "http", "https":
		local, err = s.stageHTTP(ctx, inputURL, stageDir)
	case "file", "":
		local, err = stageLocal(u.Path, stageDir)
	default:
		return "", fmt.Errorf("unsupported input url scheme %q", u.Scheme)
	}
	if err != nil {
		return "", err
	}

	ll.Info("staged input data", slog.String("url", inputURL), slog.String("file", local))
	return local, nil
}

func (s *Stager) stageHTTP(ctx context.Context, rawURL, stageDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: unexpected status %s", rawURL, resp.Status)
	}

	dst := filepath.Join(stageDir, filepath.Base(req.URL.Path))
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("writing %s: %w", dst, err)
	}
	return dst, out.Close()
}

func stageLocal(srcPath, stageDir string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	dst := filepath.Join(stageDir, filepath.Base(srcPath))
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, src); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return dst, out.Close()
}

// Unpack extracts a staged .tar.gz input into destDir. Non-archive
// inputs (tiled products arrive as single files) are copied through
// unchanged.
func Unpack(ctx context.Context, staged, destDir string) error {
	if !strings.HasSuffix(staged, ".tar.gz") && !strings.HasSuffix(staged, ".tgz") {
		_, err := stageLocal(staged, destDir)
		return err
	}

	f, err := os.Open(staged)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", staged, err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive %s: %w", staged, err)
		}

		// Reject members that would escape destDir.
		name := filepath.FromSlash(hdr.Name)
		if filepath.IsAbs(name) || strings.Contains(name, "..") {
			return fmt.Errorf("archive %s contains unsafe member %q", staged, hdr.Name)
		}
		target := filepath.Join(destDir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		default:
			// Skip links and special files; input bundles contain only
			// regular files and directories.
		}
	}
}
