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

package distribution

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cardinalhq/scenerunner/config"
	"github.com/cardinalhq/scenerunner/internal/logctx"
	"github.com/cardinalhq/scenerunner/internal/packaging"
	"github.com/cardinalhq/scenerunner/internal/retry"
)

// localDistributor packages straight into the local cache path. There is
// no network step; verification re-reads the artifact from the cache.
type localDistributor struct {
	cfg config.DistributionConfig
}

func newLocalDistributor(cfg config.DistributionConfig) *localDistributor {
	return &localDistributor{cfg: cfg}
}

func (d *localDistributor) Distribute(ctx context.Context, orderID, sourceDir, outputDir, baseName string) (*Result, error) {
	ll := logctx.FromContext(ctx)

	destDir := filepath.Join(d.cfg.LocalDir, orderID)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, &Error{Attempts: 0, Err: err}
	}

	outer := retry.Policy{
		MaxAttempts:   d.cfg.Attempts,
		Delay:         d.cfg.Delay,
		BackoffFactor: d.cfg.BackoffFactor,
	}
	pkg := retry.Policy{MaxAttempts: d.cfg.PackagingAttempts, Delay: d.cfg.PackagingDelay}

	var res *Result
	err := retry.Do(ctx, "distribute-local", outer, func() error {
		var artifact *packaging.Artifact
		if err := retry.Do(ctx, "package", pkg, func() error {
			var perr error
			artifact, perr = packaging.Package(ctx, sourceDir, destDir, baseName)
			return perr
		}); err != nil {
			return err
		}

		if err := packaging.Verify(artifact.ArchivePath, artifact.ChecksumPath); err != nil {
			return &TransferError{Err: err}
		}

		res = &Result{
			FinalPath:     artifact.ArchivePath,
			ChecksumPath:  artifact.ChecksumPath,
			ChecksumValue: artifact.Checksum,
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Attempts: d.cfg.Attempts, Err: err}
	}

	ll.Info("distributed product locally",
		slog.String("path", res.FinalPath),
		slog.String("checksum", res.ChecksumValue),
	)
	return res, nil
}

func (d *localDistributor) DistributeStatistics(ctx context.Context, orderID, statsDir string) error {
	return copyDir(statsDir, filepath.Join(d.cfg.LocalDir, orderID, "stats"))
}

// copyDir copies the regular files directly under src into dst,
// creating dst first. Statistics bundles are flat.
func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
