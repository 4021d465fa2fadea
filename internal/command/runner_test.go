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

package command

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	out, err := Run(context.Background(), t.TempDir(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestRunUsesWorkdir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	dir := t.TempDir()
	_, err := Run(context.Background(), dir, "sh", "-c", "touch marker")
	require.NoError(t, err)
	assert.FileExists(t, dir+"/marker")
}

func TestRunFailureCarriesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	out, err := Run(context.Background(), t.TempDir(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, "boom\n", out)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "sh", cerr.Name)
	assert.Equal(t, "boom\n", cerr.Output)
}

func TestRunMissingExecutable(t *testing.T) {
	_, err := Run(context.Background(), t.TempDir(), "definitely-not-installed-anywhere")
	require.Error(t, err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
}

func TestRunContextCancellation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, t.TempDir(), "sh", "-c", "sleep 60")
	require.Error(t, err)
}
