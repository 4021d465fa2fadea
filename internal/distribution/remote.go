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
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cardinalhq/scenerunner/config"
	"github.com/cardinalhq/scenerunner/internal/command"
	"github.com/cardinalhq/scenerunner/internal/logctx"
	"github.com/cardinalhq/scenerunner/internal/packaging"
	"github.com/cardinalhq/scenerunner/internal/retry"
)

// remoteDistributor packages locally, pushes the artifact and its
// checksum sidecar to a reachable cache host, then recomputes the digest
// on the remote side. A remote digest that differs from the local one is
// never accepted. A picked host that is this machine is served by a
// plain filesystem copy; no ssh is involved.
type remoteDistributor struct {
	cfg    config.DistributionConfig
	picker *hostPicker

	// localName is this machine's hostname, for the same-host copy path.
	localName string

	// run invokes external transfer commands; replaceable in tests.
	run command.Runner
}

func newRemoteDistributor(cfg config.DistributionConfig) *remoteDistributor {
	localName, _ := os.Hostname()
	return &remoteDistributor{
		cfg:       cfg,
		picker:    newHostPicker(cfg.CacheHosts, cfg.SSHPort, cfg.PingTimeout, cfg.HostRecheckTTL),
		localName: localName,
		run:       command.Run,
	}
}

// isSameHost reports whether the picked cache host is this machine.
// Host lists mix short and fully qualified names; compare the first
// label when the full names differ.
func (d *remoteDistributor) isSameHost(host string) bool {
	if host == "localhost" || (d.localName != "" && host == d.localName) {
		return true
	}
	short := func(h string) string {
		if i := strings.IndexByte(h, '.'); i >= 0 {
			return h[:i]
		}
		return h
	}
	return d.localName != "" && short(host) == short(d.localName)
}

func (d *remoteDistributor) Distribute(ctx context.Context, orderID, sourceDir, outputDir, baseName string) (*Result, error) {
	ll := logctx.FromContext(ctx)

	outer := retry.Policy{
		MaxAttempts:   d.cfg.Attempts,
		Delay:         d.cfg.Delay,
		BackoffFactor: d.cfg.BackoffFactor,
	}
	pkg := retry.Policy{MaxAttempts: d.cfg.PackagingAttempts, Delay: d.cfg.PackagingDelay}
	delivery := retry.Policy{MaxAttempts: d.cfg.DeliveryAttempts, Delay: d.cfg.DeliveryDelay}

	var res *Result
	err := retry.Do(ctx, "distribute-remote", outer, func() error {
		var artifact *packaging.Artifact
		if err := retry.Do(ctx, "package", pkg, func() error {
			var perr error
			artifact, perr = packaging.Package(ctx, sourceDir, outputDir, baseName)
			return perr
		}); err != nil {
			return err
		}

		return retry.Do(ctx, "deliver", delivery, func() error {
			r, derr := d.deliver(ctx, orderID, artifact)
			if derr != nil {
				return derr
			}
			res = r
			return nil
		})
	})
	if err != nil {
		return nil, &Error{Attempts: d.cfg.Attempts, Err: err}
	}

	ll.Info("distributed product",
		slog.String("path", res.FinalPath),
		slog.String("checksum", res.ChecksumValue),
	)
	return res, nil
}

// deliver is one delivery attempt: pick a host, push both files, verify
// the remote digest against the local one. The same-host tier short
// circuits to a filesystem copy.
func (d *remoteDistributor) deliver(ctx context.Context, orderID string, artifact *packaging.Artifact) (*Result, error) {
	host, err := d.picker.Pick(ctx)
	if err != nil {
		return nil, &TransferError{Err: err}
	}

	if d.isSameHost(host) {
		return d.deliverSameHost(ctx, orderID, host, artifact)
	}

	destDir := path.Join(d.cfg.CacheDir, orderID)
	target := d.cfg.CacheUser + "@" + host

	if _, err := d.run(ctx, "", "ssh", append(d.sshOpts("-p"), target, "mkdir", "-p", destDir)...); err != nil {
		d.picker.MarkUnreachable(host)
		return nil, &TransferError{Host: host, Err: err}
	}

	if err := d.push(ctx, target, destDir, artifact.ArchivePath, artifact.ChecksumPath); err != nil {
		d.picker.MarkUnreachable(host)
		return nil, &TransferError{Host: host, Err: err}
	}

	remoteArchive := path.Join(destDir, filepath.Base(artifact.ArchivePath))
	remoteDigest, err := d.remoteChecksum(ctx, target, remoteArchive)
	if err != nil {
		return nil, &TransferError{Host: host, Err: err}
	}
	if remoteDigest != artifact.Checksum {
		return nil, &TransferError{
			Host: host,
			Err:  fmt.Errorf("remote checksum %s does not match local %s for %s", remoteDigest, artifact.Checksum, remoteArchive),
		}
	}

	return &Result{
		FinalPath:     host + ":" + remoteArchive,
		ChecksumPath:  host + ":" + path.Join(destDir, filepath.Base(artifact.ChecksumPath)),
		ChecksumValue: artifact.Checksum,
	}, nil
}

// deliverSameHost copies the artifact and sidecar straight into the
// cache directory and verifies the copy's digest. No transfer tools run.
func (d *remoteDistributor) deliverSameHost(ctx context.Context, orderID, host string, artifact *packaging.Artifact) (*Result, error) {
	ll := logctx.FromContext(ctx)

	destDir := filepath.Join(d.cfg.CacheDir, orderID)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, &TransferError{Host: host, Err: err}
	}

	archiveDst := filepath.Join(destDir, filepath.Base(artifact.ArchivePath))
	checksumDst := filepath.Join(destDir, filepath.Base(artifact.ChecksumPath))
	if err := copyFile(artifact.ArchivePath, archiveDst); err != nil {
		return nil, &TransferError{Host: host, Err: err}
	}
	if err := copyFile(artifact.ChecksumPath, checksumDst); err != nil {
		return nil, &TransferError{Host: host, Err: err}
	}

	digest, err := packaging.Checksum(archiveDst)
	if err != nil {
		return nil, &TransferError{Host: host, Err: err}
	}
	if digest != artifact.Checksum {
		return nil, &TransferError{
			Host: host,
			Err:  fmt.Errorf("copied checksum %s does not match local %s for %s", digest, artifact.Checksum, archiveDst),
		}
	}

	ll.Debug("cache host is this machine, copied artifact directly",
		slog.String("host", host),
		slog.String("path", archiveDst),
	)
	return &Result{
		FinalPath:     archiveDst,
		ChecksumPath:  checksumDst,
		ChecksumValue: artifact.Checksum,
	}, nil
}

// push transfers files with rsync over ssh, falling back to scp once if
// rsync fails. The fallback is a different mechanism, not a retry.
func (d *remoteDistributor) push(ctx context.Context, target, destDir string, files ...string) error {
	ll := logctx.FromContext(ctx)

	rsyncArgs := []string{"-a", "-e", d.sshCommand()}
	rsyncArgs = append(rsyncArgs, files...)
	rsyncArgs = append(rsyncArgs, target+":"+destDir+"/")
	if _, err := d.run(ctx, "", "rsync", rsyncArgs...); err == nil {
		return nil
	} else {
		ll.Warn("rsync push failed, falling back to scp", slog.Any("error", err))
	}

	scpArgs := append(d.sshOpts("-P"), "-r")
	scpArgs = append(scpArgs, files...)
	scpArgs = append(scpArgs, target+":"+destDir+"/")
	if _, err := d.run(ctx, "", "scp", scpArgs...); err != nil {
		return fmt.Errorf("scp fallback failed: %w", err)
	}
	return nil
}

func (d *remoteDistributor) remoteChecksum(ctx context.Context, target, remotePath string) (string, error) {
	out, err := d.run(ctx, "", "ssh", append(d.sshOpts("-p"), target, "md5sum", remotePath)...)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(out)
	if len(fields) < 1 || len(fields[0]) != 32 {
		return "", fmt.Errorf("unexpected md5sum output %q", strings.TrimSpace(out))
	}
	return fields[0], nil
}

// sshOpts returns the common ssh/scp options; the port flag spelling
// differs between the two tools.
func (d *remoteDistributor) sshOpts(portFlag string) []string {
	return []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "BatchMode=yes",
		portFlag, strconv.Itoa(d.cfg.SSHPort),
	}
}

func (d *remoteDistributor) sshCommand() string {
	return "ssh -o StrictHostKeyChecking=no -o BatchMode=yes -p " + strconv.Itoa(d.cfg.SSHPort)
}

func (d *remoteDistributor) DistributeStatistics(ctx context.Context, orderID, statsDir string) error {
	delivery := retry.Policy{MaxAttempts: d.cfg.DeliveryAttempts, Delay: d.cfg.DeliveryDelay}

	return retry.Do(ctx, "deliver-statistics", delivery, func() error {
		host, err := d.picker.Pick(ctx)
		if err != nil {
			return &TransferError{Err: err}
		}
		destDir := path.Join(d.cfg.CacheDir, orderID, "stats")

		if d.isSameHost(host) {
			if err := copyDir(statsDir, destDir); err != nil {
				return &TransferError{Host: host, Err: err}
			}
			return nil
		}

		target := d.cfg.CacheUser + "@" + host
		if _, err := d.run(ctx, "", "ssh", append(d.sshOpts("-p"), target, "mkdir", "-p", destDir)...); err != nil {
			d.picker.MarkUnreachable(host)
			return &TransferError{Host: host, Err: err}
		}
		if err := d.push(ctx, target, destDir, statsDir+"/"); err != nil {
			d.picker.MarkUnreachable(host)
			return &TransferError{Host: host, Err: err}
		}
		return nil
	})
}
