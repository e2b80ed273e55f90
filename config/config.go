// Package config holds the translation core's configuration surface
// (spec §6): the handful of options that change decode and pass-pipeline
// behavior, built with the same functional-option shape the teacher uses
// for its Emulator/Pipeline (emu.EmulatorOption, pipeline.PipelineOption).
package config

import (
	"io"
	"os"

	"github.com/sarchlab/x86dbt/ra"
)

// Configuration holds the recognized options relevant to the core (spec
// §6). New's defaults are single-block decoding, unbounded block length
// (MaxInstPerBlock -1), ReplaceX87 disabled, and all optimization passes
// enabled. A bare zero value differs in one field: MaxInstPerBlock 0
// caps every block at zero instructions.
type Configuration struct {
	// Multiblock enables multi-block decoding: the decoder continues
	// past a block-ending instruction into a successor block when a
	// prior conditional forward branch covers it, instead of stopping
	// at the first block-ender.
	Multiblock bool

	// MaxInstPerBlock caps block length; -1 means unlimited.
	MaxInstPerBlock int64

	// UnsafeReplaceX87 enables the ReplaceX87 optimizer (spec §4.4). It
	// is named Unsafe because the peephole's flush-and-bail behavior on
	// an ambiguous state is a known incomplete optimization (spec §9).
	UnsafeReplaceX87 bool

	// DisablePasses skips the optional optimization passes
	// (StaticRegAlloc) that AddDefaultPasses would otherwise install.
	DisablePasses bool

	// DumpIR names the phases at which the IR should be dumped: any
	// combination of "pre-ra" and "post-ra" (spec §4.3 steps 11/13).
	DumpIR []string

	// DumpWriter is where a DumpIR pass installed from DumpIR writes its
	// output. Nil means DumpWriterOrDefault falls back to os.Stdout.
	DumpWriter io.Writer

	// RAConfig is the register allocator's per-class physical budget
	// and conflict table (spec §4.5, §6).
	RAConfig ra.ClassConfig
}

// Option configures a Configuration at construction.
type Option func(*Configuration)

// WithMultiblock enables multi-block decoding.
func WithMultiblock(enabled bool) Option {
	return func(c *Configuration) { c.Multiblock = enabled }
}

// WithMaxInstPerBlock caps block length; -1 means unlimited.
func WithMaxInstPerBlock(n int64) Option {
	return func(c *Configuration) { c.MaxInstPerBlock = n }
}

// WithUnsafeReplaceX87 enables the ReplaceX87 optimizer.
func WithUnsafeReplaceX87(enabled bool) Option {
	return func(c *Configuration) { c.UnsafeReplaceX87 = enabled }
}

// WithDisablePasses skips the optional optimization passes.
func WithDisablePasses(disabled bool) Option {
	return func(c *Configuration) { c.DisablePasses = disabled }
}

// WithDumpIR names the phases at which the IR should be dumped.
func WithDumpIR(phases ...string) Option {
	return func(c *Configuration) { c.DumpIR = phases }
}

// WithDumpWriter sets where a DumpIR pass installed from DumpIR writes.
func WithDumpWriter(w io.Writer) Option {
	return func(c *Configuration) { c.DumpWriter = w }
}

// WithRAConfig sets the register allocator's per-class budget.
func WithRAConfig(cfg ra.ClassConfig) Option {
	return func(c *Configuration) { c.RAConfig = cfg }
}

// New builds a Configuration from opts, starting from the zero value with
// MaxInstPerBlock set to -1 (unlimited).
func New(opts ...Option) Configuration {
	c := Configuration{MaxInstPerBlock: -1}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// DumpsAt reports whether phase is named in DumpIR.
func (c Configuration) DumpsAt(phase string) bool {
	for _, p := range c.DumpIR {
		if p == phase {
			return true
		}
	}
	return false
}

// DumpWriterOrDefault returns DumpWriter, falling back to os.Stdout when
// a Configuration was built without going through New (e.g. a bare
// struct literal in a test).
func (c Configuration) DumpWriterOrDefault() io.Writer {
	if c.DumpWriter != nil {
		return c.DumpWriter
	}
	return os.Stdout
}
