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

// Package pipeline sequences one order+product from validation through
// packaged, checksum-verified distribution. Each run owns its directory
// trio exclusively and removes it on every exit path unless the keep
// override is set.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cardinalhq/scenerunner/config"
	"github.com/cardinalhq/scenerunner/internal/command"
	"github.com/cardinalhq/scenerunner/internal/distribution"
	"github.com/cardinalhq/scenerunner/internal/logctx"
	"github.com/cardinalhq/scenerunner/internal/manifest"
	"github.com/cardinalhq/scenerunner/internal/orders"
	"github.com/cardinalhq/scenerunner/internal/science"
	"github.com/cardinalhq/scenerunner/internal/sensor"
	"github.com/cardinalhq/scenerunner/internal/staging"
	"github.com/cardinalhq/scenerunner/internal/stats"
)

// Processor runs one order+product to its terminal state. A processor is
// single-use; parallelism across orders comes from running independent
// worker processes, never from sharing a processor.
type Processor struct {
	cfg  *config.Config
	ord  *orders.Order
	desc *sensor.Descriptor
	dist distribution.Distributor

	stager *staging.Stager
	run    command.Runner
	sci    *science.Table
	now    func() time.Time

	state State
	dirs  *Dirs
}

// Option adjusts a processor, mainly for tests.
type Option func(*Processor)

// WithRunner substitutes the external-command runner.
func WithRunner(r command.Runner) Option {
	return func(p *Processor) { p.run = r }
}

// WithStager substitutes the input stager.
func WithStager(s *staging.Stager) Option {
	return func(p *Processor) { p.stager = s }
}

// WithCommandTable substitutes the science command table.
func WithCommandTable(t *science.Table) Option {
	return func(p *Processor) { p.sci = t }
}

// WithClock substitutes the product-name timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// New resolves the order's sensor and wires a processor. Resolution
// failure is fatal here; nothing has touched the filesystem yet.
func New(cfg *config.Config, ord *orders.Order, dist distribution.Distributor, opts ...Option) (*Processor, error) {
	desc, err := sensor.Resolve(ord.ProductID)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:    cfg,
		ord:    ord,
		desc:   desc,
		dist:   dist,
		stager: staging.New(),
		run:    command.Run,
		sci:    science.DefaultTable(),
		now:    time.Now,
		state:  StateCreated,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Descriptor returns the resolved sensor descriptor.
func (p *Processor) Descriptor() *sensor.Descriptor { return p.desc }

// State returns the pipeline's current position.
func (p *Processor) State() State { return p.state }

func (p *Processor) setState(ctx context.Context, s State) {
	p.state = s
	logctx.FromContext(ctx).Debug("pipeline state", slog.String("state", s.String()))
}

// Run executes the full stage sequence. Whatever happens after the
// directories exist, they are removed before Run returns unless the keep
// override is configured.
func (p *Processor) Run(ctx context.Context) (res *distribution.Result, err error) {
	ctx = logctx.WithOrder(ctx, p.ord.OrderID, p.ord.ProductID)
	ll := logctx.FromContext(ctx)

	p.ord.Options.ApplyDefaults()
	if err := orders.Validate(p.ord, p.desc); err != nil {
		return nil, err
	}
	p.setState(ctx, StateValidated)

	dirs, err := InitDirs(p.cfg.Work.BaseDir, p.ord.OrderID, p.ord.ProductID)
	if err != nil {
		return nil, err
	}
	p.dirs = dirs
	defer func() {
		if rmErr := dirs.Remove(p.cfg.Work.KeepWorkDir); rmErr != nil {
			ll.Error("failed to remove order directories",
				slog.String("root", dirs.Root),
				slog.Any("error", rmErr),
			)
			if err == nil {
				err = rmErr
			}
		}
		p.setState(ctx, StateDirectoriesRemoved)
	}()
	p.setState(ctx, StateDirectoriesInitialized)

	if err := p.stageInput(ctx); err != nil {
		return nil, err
	}
	p.setState(ctx, StateStaged)

	if err := p.buildProducts(ctx); err != nil {
		return nil, err
	}
	p.setState(ctx, StateProductsBuilt)

	if err := p.cleanupWork(ctx); err != nil {
		return nil, err
	}
	p.setState(ctx, StateCleanedUp)

	if err := p.customize(ctx); err != nil {
		return nil, err
	}
	p.setState(ctx, StateCustomized)

	if p.ord.Options.IncludeStatistics {
		if err := stats.Generate(ctx, dirs.Work, filepath.Join(dirs.Work, "stats")); err != nil {
			return nil, err
		}
	}
	p.setState(ctx, StateStatisticsGenerated)

	if p.ord.Options.IncludeStatistics {
		if err := p.dist.DistributeStatistics(ctx, p.ord.OrderID, filepath.Join(dirs.Work, "stats")); err != nil {
			return nil, err
		}
	}
	p.setState(ctx, StateStatisticsDistributed)

	if err := p.reformat(ctx); err != nil {
		return nil, err
	}
	p.setState(ctx, StateReformatted)

	name := ProductName(p.desc, p.ord.OrderID, p.now())
	res, err = p.dist.Distribute(ctx, p.ord.OrderID, dirs.Work, dirs.Output, name)
	if err != nil {
		return nil, err
	}
	p.setState(ctx, StatePackagedAndDistributed)

	ll.Info("order processed",
		slog.String("product", name),
		slog.String("finalPath", res.FinalPath),
		slog.String("checksum", res.ChecksumValue),
	)
	return res, nil
}

func (p *Processor) stageInput(ctx context.Context) error {
	if p.ord.InputURL == "" && p.desc.Family == sensor.FamilyPlot {
		return nil
	}

	staged, err := p.stager.Stage(ctx, p.ord.InputURL, p.dirs.Stage)
	if err != nil {
		return err
	}
	return staging.Unpack(ctx, staged, p.dirs.Work)
}

func (p *Processor) buildProducts(ctx context.Context) error {
	opts := &p.ord.Options
	if !opts.HasDerivedOutputs() || !p.desc.SupportsDerivedProducts() {
		// Empty-but-valid run: nothing to build, the remaining stages
		// still happen.
		return nil
	}

	metadataFile, err := manifest.Find(p.dirs.Work, p.ord.ProductID)
	if err != nil {
		return fmt.Errorf("locating product manifest: %w", err)
	}

	for _, inv := range p.sci.BuildCommands(p.desc, opts, filepath.Base(metadataFile)) {
		if _, err := p.run(ctx, p.dirs.Work, inv.Name, inv.Args...); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) cleanupWork(ctx context.Context) error {
	behavior := behaviorFor(p.desc.Family)

	if !p.ord.Options.KeepIntermediateData {
		for _, glob := range behavior.cleanupGlobs {
			matches, err := filepath.Glob(filepath.Join(p.dirs.Work, glob))
			if err != nil {
				return err
			}
			for _, m := range matches {
				if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("removing intermediate %s: %w", m, err)
				}
			}
		}
	}

	// Drop unrequested bands from the manifest and the work directory.
	// Families without a manifest have nothing to prune.
	metadataFile, err := manifest.Find(p.dirs.Work, p.ord.ProductID)
	if err != nil {
		return nil
	}
	m, err := manifest.Load(metadataFile)
	if err != nil {
		return err
	}
	removed, err := m.Prune(p.dirs.Work, requestedProducts(&p.ord.Options), p.ord.Options.RequiresSurfaceReflectance())
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		logctx.FromContext(ctx).Debug("pruned unrequested bands", slog.Int("count", len(removed)))
	}
	return nil
}

func (p *Processor) customize(ctx context.Context) error {
	opts := &p.ord.Options
	if !opts.NeedsCustomization() {
		return nil
	}

	rasters, err := filepath.Glob(filepath.Join(p.dirs.Work, "*.img"))
	if err != nil {
		return err
	}
	for _, src := range rasters {
		dst := src + ".warped"
		inv := p.sci.WarpCommand(p.desc, opts, filepath.Base(src), filepath.Base(dst))
		if _, err := p.run(ctx, p.dirs.Work, inv.Name, inv.Args...); err != nil {
			return err
		}
		if err := os.Rename(dst, src); err != nil {
			return fmt.Errorf("replacing warped raster %s: %w", src, err)
		}
	}
	return nil
}

func (p *Processor) reformat(ctx context.Context) error {
	inv := p.sci.ReformatCommand(&p.ord.Options, "")
	if inv == nil {
		return nil
	}

	metadataFile, err := manifest.Find(p.dirs.Work, p.ord.ProductID)
	if err != nil {
		return fmt.Errorf("locating product manifest for reformat: %w", err)
	}
	inv = p.sci.ReformatCommand(&p.ord.Options, filepath.Base(metadataFile))
	_, err = p.run(ctx, p.dirs.Work, inv.Name, inv.Args...)
	return err
}
