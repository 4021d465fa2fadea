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

package pipeline

// State is the pipeline position of one order+product run. Transitions
// are strictly sequential; any stage error jumps directly to
// StateDirectoriesRemoved via the guaranteed cleanup path.
type State int

const (
	StateCreated State = iota
	StateValidated
	StateDirectoriesInitialized
	StateStaged
	StateProductsBuilt
	StateCleanedUp
	StateCustomized
	StateStatisticsGenerated
	StateStatisticsDistributed
	StateReformatted
	StatePackagedAndDistributed
	StateDirectoriesRemoved
)

var stateNames = map[State]string{
	StateCreated:                "created",
	StateValidated:              "validated",
	StateDirectoriesInitialized: "directories-initialized",
	StateStaged:                 "staged",
	StateProductsBuilt:          "products-built",
	StateCleanedUp:              "cleaned-up",
	StateCustomized:             "customized",
	StateStatisticsGenerated:    "statistics-generated",
	StateStatisticsDistributed:  "statistics-distributed",
	StateReformatted:            "reformatted",
	StatePackagedAndDistributed: "packaged-and-distributed",
	StateDirectoriesRemoved:     "directories-removed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "invalid"
}

// Terminal reports whether the pipeline has finished, successfully or not.
func (s State) Terminal() bool {
	return s == StateDirectoriesRemoved
}
