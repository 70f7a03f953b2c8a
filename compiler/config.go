// Ambient configuration for this package, wired to
// github.com/xyproto/env/v2 the way the teacher threads environment
// variable lookups through its own config surfaces (e.g.
// internal/integration_test "ENABLE_*" gates), adapted here into a single
// Config value a JIT instance captures at construction rather than reading
// the environment on every compile.
package compiler

import "github.com/xyproto/env/v2"

// Config holds the debug settings a JIT instance captures at construction.
// NewJIT stores it on the JIT, but no code path in this package reads its
// fields: they change neither the emitted code nor what is written to the
// Diagnostics sink.
type Config struct {
	// Debug mirrors JITCORE_DEBUG. The dispatch loop does not consult it;
	// no per-opcode trace is written.
	Debug bool
	// DumpDir mirrors JITCORE_DEBUG_DIR. Nothing is written there; a failed
	// compilation produces only its one diagnostic line.
	DumpDir string
}

// ConfigFromEnv builds a Config from JITCORE_DEBUG and JITCORE_DEBUG_DIR,
// mirroring the teacher's pattern of gating expensive diagnostics behind
// environment variables rather than build tags.
func ConfigFromEnv() Config {
	return Config{
		Debug:   env.Bool("JITCORE_DEBUG"),
		DumpDir: env.Str("JITCORE_DEBUG_DIR"),
	}
}
