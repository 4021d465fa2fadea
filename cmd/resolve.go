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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/scenerunner/internal/sensor"
)

func init() {
	cmd := &cobra.Command{
		Use:   "resolve PRODUCT_ID [PRODUCT_ID...]",
		Short: "Resolve product identifiers",
		Long:  "Print the sensor descriptor for each product identifier. Useful for checking what a given order would be routed as.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			var failures int
			for _, id := range args {
				desc, err := sensor.Resolve(id)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", id, err)
					failures++
					continue
				}
				if err := enc.Encode(desc); err != nil {
					return err
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d identifiers did not resolve", failures, len(args))
			}
			return nil
		},
	}

	rootCmd.AddCommand(cmd)
}
