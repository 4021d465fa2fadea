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
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Downloader lazily builds the AWS client the first time an s3:// input
// shows up; most deployments stage over http and never pay for it.
type s3Downloader struct {
	once   sync.Once
	client *s3.Client
	err    error
}

func (d *s3Downloader) get(ctx context.Context) (*s3.Client, error) {
	d.once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			d.err = fmt.Errorf("loading AWS config: %w", err)
			return
		}
		d.client = s3.NewFromConfig(cfg)
	})
	return d.client, d.err
}

func (s *Stager) stageS3(ctx context.Context, u *url.URL, stageDir string) (string, error) {
	client, err := s.s3.get(ctx)
	if err != nil {
		return "", err
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	dst := filepath.Join(stageDir, filepath.Base(key))
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	downloader := manager.NewDownloader(client)
	if _, err := downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	return dst, f.Close()
}
