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

package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/scenerunner/config"
	"github.com/cardinalhq/scenerunner/internal/distribution"
	"github.com/cardinalhq/scenerunner/internal/orders"
	"github.com/cardinalhq/scenerunner/internal/pipeline"
	"github.com/cardinalhq/scenerunner/internal/science"
)

var (
	batchFile    string
	batchWorkers int
)

func init() {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process a batch of orders",
		Long:  "Read dispatcher batch input (one order JSON object per line) and run every order through the pipeline with a bounded worker pool.",
		RunE:  runBatch,
	}

	cmd.Flags().StringVarP(&batchFile, "file", "f", "", "Path to the JSON-lines batch file (defaults to stdin)")
	cmd.Flags().IntVarP(&batchWorkers, "workers", "w", 1, "Number of orders processed concurrently")
	rootCmd.AddCommand(cmd)
}

func runBatch(_ *cobra.Command, _ []string) error {
	jobID := uuid.New().String()

	servicename := "scenerunner-batch"
	addlAttrs := attribute.NewSet(
		attribute.String("action", "batch"),
		attribute.String("jobID", jobID),
	)
	doneCtx, doneFx, err := setupTelemetry(servicename, &addlAttrs)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dist, err := distribution.New(cfg)
	if err != nil {
		return err
	}

	sci, err := science.LoadTable(cfg.Science.CommandTable)
	if err != nil {
		return err
	}

	in := os.Stdin
	if batchFile != "" && batchFile != "-" {
		f, err := os.Open(batchFile)
		if err != nil {
			return fmt.Errorf("opening batch file: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	var processed, failed atomic.Int64

	g, gctx := errgroup.WithContext(doneCtx)
	g.SetLimit(batchWorkers)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		n := lineno
		g.Go(func() error {
			ord, err := orders.ParseBatchLine(line)
			if err != nil {
				failed.Add(1)
				slog.Error("Skipping malformed batch line", slog.Int("line", n), slog.Any("error", err))
				return nil
			}

			proc, err := pipeline.New(cfg, ord, dist, pipeline.WithCommandTable(sci))
			if err != nil {
				failed.Add(1)
				ordersFailedCounter.Add(gctx, 1, metric.WithAttributeSet(commonAttributes))
				slog.Error("Order rejected",
					slog.String("orderID", ord.OrderID),
					slog.String("productID", ord.ProductID),
					slog.Any("error", err),
				)
				return nil
			}

			start := time.Now()
			_, runErr := proc.Run(gctx)
			orderDuration.Record(gctx, time.Since(start).Seconds(),
				metric.WithAttributeSet(commonAttributes))
			if runErr != nil {
				failed.Add(1)
				ordersFailedCounter.Add(gctx, 1, metric.WithAttributeSet(commonAttributes))
				slog.Error("Order failed",
					slog.String("orderID", ord.OrderID),
					slog.String("productID", ord.ProductID),
					slog.Any("error", runErr),
				)
				return nil
			}
			processed.Add(1)
			ordersProcessedCounter.Add(gctx, 1, metric.WithAttributeSet(commonAttributes))
			return nil
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading batch input: %w", err)
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Batch complete",
		slog.String("jobID", jobID),
		slog.Int64("processed", processed.Load()),
		slog.Int64("failed", failed.Load()),
	)
	if failed.Load() > 0 {
		return fmt.Errorf("%d of %d orders failed", failed.Load(), failed.Load()+processed.Load())
	}
	return nil
}
