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

// Package command runs the external science and transfer executables.
// Every invocation is synchronous, carries an explicit working directory,
// and captures combined output for logging. Nothing here mutates the
// process working directory.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/cardinalhq/scenerunner/internal/logctx"
)

// Error is a non-zero exit (or failure to start) from an external
// executable, with its combined output attached. It is fatal: re-running
// deterministic science code rarely helps.
type Error struct {
	Name   string
	Args   []string
	Output string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("command %s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Runner is the function type pipeline stages use to invoke executables.
// It exists so tests can substitute a fake.
type Runner func(ctx context.Context, workdir, name string, args ...string) (string, error)

// Run executes name with args in workdir and returns its combined output.
func Run(ctx context.Context, workdir, name string, args ...string) (string, error) {
	ll := logctx.FromContext(ctx)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workdir

	start := time.Now()
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if err != nil {
		ll.Error("external command failed",
			slog.String("command", name),
			slog.Any("args", args),
			slog.String("workdir", workdir),
			slog.Duration("elapsed", elapsed),
			slog.String("output", string(out)),
			slog.Any("error", err),
		)
		return string(out), &Error{Name: name, Args: args, Output: string(out), Err: err}
	}

	ll.Debug("external command completed",
		slog.String("command", name),
		slog.Any("args", args),
		slog.Duration("elapsed", elapsed),
	)
	return string(out), nil
}
