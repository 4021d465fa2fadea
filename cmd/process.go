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
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/scenerunner/config"
	"github.com/cardinalhq/scenerunner/internal/distribution"
	"github.com/cardinalhq/scenerunner/internal/orders"
	"github.com/cardinalhq/scenerunner/internal/pipeline"
	"github.com/cardinalhq/scenerunner/internal/science"
)

var processOrderFile string

func init() {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process a single product order",
		Long:  "Read one order (JSON) from a file or stdin, run the full pipeline, and distribute the packaged product.",
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "scenerunner-process"
			addlAttrs := attribute.NewSet(
				attribute.String("action", "process"),
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

			var data []byte
			if processOrderFile == "" || processOrderFile == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(processOrderFile)
			}
			if err != nil {
				return fmt.Errorf("reading order: %w", err)
			}

			ord, err := orders.ParseBatchLine(data)
			if err != nil {
				return err
			}

			sci, err := science.LoadTable(cfg.Science.CommandTable)
			if err != nil {
				return err
			}

			proc, err := pipeline.New(cfg, ord, dist, pipeline.WithCommandTable(sci))
			if err != nil {
				return err
			}

			start := time.Now()
			res, runErr := proc.Run(doneCtx)
			orderDuration.Record(doneCtx, time.Since(start).Seconds(),
				metric.WithAttributeSet(commonAttributes))
			if runErr != nil {
				ordersFailedCounter.Add(doneCtx, 1, metric.WithAttributeSet(commonAttributes))
				return runErr
			}
			ordersProcessedCounter.Add(doneCtx, 1, metric.WithAttributeSet(commonAttributes))

			fmt.Printf("%s  %s\n", res.ChecksumValue, res.FinalPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&processOrderFile, "order", "o", "", "Path to the order JSON file (defaults to stdin)")
	rootCmd.AddCommand(cmd)
}
