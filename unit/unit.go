// Package unit bundles one decode.Decoder, one ir.Emitter, one
// pass.Manager, and one ra.Allocator into the translation-unit
// abstraction spec.md §5 describes: "multiple guest threads may drive
// the pipeline concurrently", each through its own unshared instance.
// Adapted from the teacher's timing/core.Core, which wraps a
// pipeline.Pipeline the same way — a thin façade over a bigger owned
// component, exposing just the entry points a caller needs.
package unit

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/x86dbt/config"
	"github.com/sarchlab/x86dbt/decode"
	"github.com/sarchlab/x86dbt/internal/xlog"
	"github.com/sarchlab/x86dbt/ir"
	"github.com/sarchlab/x86dbt/ir/pass"
	"github.com/sarchlab/x86dbt/ir/pass/opt"
)

// TranslationUnit drives one guest block through decode, IR building,
// the optimization pipeline, and register allocation. No state is
// shared between units (spec §5): each owns its own Decoder, Emitter,
// and Manager, so RunAll can safely fan a batch of them out across
// goroutines.
type TranslationUnit struct {
	ID xid.ID

	Config  config.Configuration
	Context ir.GuestContext

	decoder *decode.Decoder
	blocks  *decode.BlockCache
	manager *pass.Manager
	raPass  *opt.RegisterAllocationPass

	logger logr.Logger
}

// blockCacheSets/blockCacheWays size the per-unit BlockCache: 64 sets x
// 4 ways gives 256 entries, generous for the hot-PC working set of one
// guest thread's retranslations within a session.
const (
	blockCacheSets = 64
	blockCacheWays = 4
)

// New builds a TranslationUnit from cfg, wiring the default pass
// pipeline (spec §4.3) plus register allocation. ctx describes the
// guest context layout LowerX87 and the IR builder address their
// context reads/writes against.
func New(cfg config.Configuration, ctx ir.GuestContext, logger logr.Logger) *TranslationUnit {
	if logger.GetSink() == nil {
		logger = xlog.Discard()
	}

	decoder := decode.NewDecoder()
	decoder.Multiblock = cfg.Multiblock
	decoder.MaxInstPerBlock = cfg.MaxInstPerBlock

	manager := pass.NewManager(pass.WithLogger(logger))

	dumpWriter := cfg.DumpWriterOrDefault()
	opt.InstallDefaultPasses(manager, ctx, cfg.UnsafeReplaceX87, false, !cfg.DisablePasses, cfg.RAConfig, cfg.DumpsAt("pre-ra"), dumpWriter)
	opt.InstallDefaultValidationPasses(manager)
	raPass := opt.InstallRegisterAllocationPass(manager, cfg.RAConfig, !cfg.DisablePasses, cfg.DumpsAt("post-ra"), dumpWriter)

	return &TranslationUnit{
		ID:      xid.New(),
		Config:  cfg,
		Context: ctx,
		decoder: decoder,
		blocks:  decode.NewBlockCache(blockCacheSets, blockCacheWays),
		manager: manager,
		raPass:  raPass,
		logger:  logger,
	}
}

// Translate decodes one block at entryPC from mem, lowers it to IR, and
// runs the optimization/register-allocation pipeline over it. The
// returned Emitter's Program, compacted by the pipeline's Compaction
// step, is ready for the backend contract (backend.NewAllocationView).
func (u *TranslationUnit) Translate(mem decode.GuestMemory, entryPC uint64) (*ir.Emitter, error) {
	var decoded decode.DecodedBlock
	if cached, hit := u.blocks.Lookup(entryPC); hit {
		decoded = *cached
	} else {
		opts := u.decoder.OptionsFromDecoder()
		decoded = u.decoder.DecodeBlock(mem, entryPC, opts)
		if len(decoded.Instructions) > 0 {
			u.blocks.Insert(entryPC, &decoded)
		}
	}
	if len(decoded.Instructions) == 0 {
		return nil, fmt.Errorf("unit %s: %w: no instructions decoded at pc=%#x", u.ID, decode.ErrDecode, entryPC)
	}

	e := ir.NewEmitter()
	ir.BuildBlock(e, u.Context, decoded)

	u.manager.Run(e)

	if err := u.raPass.Err(); err != nil {
		return nil, fmt.Errorf("unit %s: %w", u.ID, err)
	}

	u.logger.V(1).Info("translated block", "unit", u.ID, "pc", entryPC, "instructions", len(decoded.Instructions))
	return e, nil
}

// AllocationData returns the unit's register-allocation pass, never nil;
// its HadFullRA, SpillSlotCount and Data report the most recent
// successful allocation (Data is nil until one has succeeded).
func (u *TranslationUnit) AllocationData() *opt.RegisterAllocationPass { return u.raPass }

// RunAll translates every (unit, entryPC) pair concurrently using
// errgroup, modeling spec §5's "multiple guest threads may drive the
// pipeline concurrently" — each unit's state is already independent, so
// this is purely additive ambient infrastructure, not a change to
// per-unit semantics.
func RunAll(ctx context.Context, mem decode.GuestMemory, jobs []Job) ([]*ir.Emitter, error) {
	results := make([]*ir.Emitter, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			e, err := job.Unit.Translate(mem, job.EntryPC)
			if err != nil {
				return err
			}
			results[i] = e
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Job pairs a TranslationUnit with the entry point it should translate,
// the input RunAll fans out across goroutines.
type Job struct {
	Unit    *TranslationUnit
	EntryPC uint64
}
