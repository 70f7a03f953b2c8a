// Package compiler implements the baseline JIT itself: the opcode
// dispatch loop and the per-family lowering (arithmetic, memory, calls,
// object operations, exception-handling funclets) described across spec
// §4. A JIT value is a one-shot, single-threaded compilation context
// (spec §5): construct one, call Compile or CompileWithFunclets once, and
// discard it.
//
// Grounded on the teacher's internal/engine/compiler.compiler interface
// (Compile(module, function) (CompiledFunction, error)) for the overall
// "one compiler value per compilation, pure function of its inputs" shape;
// the per-opcode dispatch itself has no teacher analogue (wazero compiles
// WASM, not CIL) and is built directly from spec §4.
package compiler

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/ProtonOS/baseline-jit/internal/asm"
	"github.com/ProtonOS/baseline-jit/internal/evalstack"
	"github.com/ProtonOS/baseline-jit/internal/gcinfo"
	"github.com/ProtonOS/baseline-jit/internal/registry"
	"github.com/ProtonOS/baseline-jit/internal/resolver"
)

// Diagnostics receives human-readable compile-time messages. The default
// implementation writes to stderr; tests substitute a capturing sink.
// Grounded on the teacher's internal/logging.Logger interface shape (a
// single narrow sink callers can swap), pared down to this package's one
// real need: printing the one diagnostic line spec §7 requires on fatal
// failure.
type Diagnostics interface {
	Printf(format string, args ...any)
}

type stderrDiagnostics struct{}

func (stderrDiagnostics) Printf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// EHClauseKind classifies an input exception-handling clause, per spec §3.
type EHClauseKind byte

const (
	EHException EHClauseKind = iota
	EHFilter
	EHFinally
	EHFault
)

// ILExceptionClause is one input EH clause, per spec §3's EH-clause table.
type ILExceptionClause struct {
	Kind EHClauseKind

	TryStartIL, TryEndIL       int
	HandlerStartIL, HandlerEndIL int

	ClassToken    uint32 // valid when Kind == EHException
	FilterStartIL int    // valid when Kind == EHFilter; IL offset of the filter expression
}

// JITExceptionClause is one output EH clause with IL offsets translated to
// native offsets, per spec §6.
type JITExceptionClause struct {
	Kind EHClauseKind

	TryStartNative, TryEndNative       int32
	HandlerStartNative, HandlerEndNative int32

	LeaveTargetNative int32 // native offset `leave` inside this clause's try resumes at
	FilterNative      int32 // native offset of the filter-expression funclet, valid when Kind == EHFilter
	CatchMT           uintptr // resolved catch-type MethodTable, valid when Kind == EHException and resolvable
}

// FuncletRecord describes one compiled funclet, per spec §3's funclet
// table.
type FuncletRecord struct {
	StartNative int32
	Size        int32
	ClauseIndex int
	IsFilter    bool // true for a filter-expression funclet, false for its paired handler
}

// FloatKind classifies whether an argument/local is a float and which
// width, per spec §6 ("float_kind in {0=not-float, 4=float32, 8=float64}").
type FloatKind byte

const (
	NotFloat FloatKind = 0
	Float32Kind FloatKind = 4
	Float64Kind FloatKind = 8
)

// CompileInput bundles every input spec §6 names for a single compilation.
type CompileInput struct {
	IL []byte

	ArgCount   int
	LocalCount int

	LocalIsValueType []bool
	LocalTypeSize    []int32

	ArgIsValueType []bool
	ArgTypeSize    []int32
	ArgFloatKind   []FloatKind

	// ReturnVoid is true when the method returns no value; every other
	// ret-lowering decision is driven by ReturnIsValueType/ReturnFloatKind,
	// which are meaningless when ReturnVoid is set.
	ReturnVoid        bool
	ReturnIsValueType bool
	ReturnTypeSize    int32
	ReturnFloatKind   FloatKind

	GCRefMask uint64

	EHClauses []ILExceptionClause

	// MethodToken/AssemblyID identify the method being compiled, for
	// self-recursive tail.call detection and for registering this method's
	// NativeCodeCell once compilation finishes.
	MethodToken uint32
	AssemblyID  uint32
	HasThis     bool
}

// CompileResult bundles every output spec §6 names.
type CompileResult struct {
	Code            []byte
	FunctionPointer *byte
	NativeSize      int32
	PrologueSize    int32
	StackAdjust     int32

	EHClauses []JITExceptionClause
	Funclets  []FuncletRecord

	GCInfo []byte
}

// JIT is a one-shot compilation context. Not safe for concurrent use by
// multiple goroutines against the same instance; spec §5 mandates a fresh
// JIT per compilation, each with its own arenas and buffers.
type JIT struct {
	id        uuid.UUID
	registry  *registry.Registry
	resolvers resolver.Resolvers
	helpers   resolver.RuntimeHelpers
	cfg       Config
	diag      Diagnostics
}

// NewJIT creates a JIT instance sharing reg (the only cross-compilation
// mutable state, per spec §5) and using resolvers for this compilation's
// token lookups. Each call gets a fresh correlation id for diagnostics.
func NewJIT(reg *registry.Registry, resolvers resolver.Resolvers, cfg Config) *JIT {
	return &JIT{
		id:        uuid.New(),
		registry:  reg,
		resolvers: resolvers,
		cfg:       cfg,
		diag:      stderrDiagnostics{},
	}
}

// SetRuntimeHelpers installs the host allocation/type-test helper
// addresses newarr/newobj/castclass/isinst/MD-array lowering call into.
func (j *JIT) SetRuntimeHelpers(h resolver.RuntimeHelpers) {
	j.helpers = h
}

// SetDiagnostics overrides the default stderr sink, primarily for tests.
func (j *JIT) SetDiagnostics(d Diagnostics) {
	j.diag = d
}

// codeBufferSize implements spec §4.1's sizing rule: "16 × IL-bytes + 512,
// rounded up to 4 KB."
func codeBufferSize(ilLen int) int {
	n := 16*ilLen + 512
	const page = 4096
	return (n + page - 1) &^ (page - 1)
}

// Compile is the same as CompileWithFunclets: it runs the full two-pass
// compilation, so any clauses in in.EHClauses are compiled into funclets
// here too. Callers whose methods have no exception handling can use this
// name without thinking about funclets.
func (j *JIT) Compile(in CompileInput) (*CompileResult, error) {
	return j.CompileWithFunclets(in)
}

// CompileWithFunclets runs the full two-pass compilation described by spec
// §4.7: a main-body pass that skips over handler regions, followed by a
// funclet pass that compiles each clause's handler (and filter expression,
// if any) as an independent function.
func (j *JIT) CompileWithFunclets(in CompileInput) (*CompileResult, error) {
	buf := asm.NewCodeBuffer(make([]byte, codeBufferSize(len(in.IL))))
	e := asm.NewEmitter(buf)
	gc := gcinfo.NewBuilder()

	mc := &methodCompiler{
		jit:    j,
		in:     in,
		buf:    buf,
		e:      e,
		gc:     gc,
		labels: newLabelTable(),
		frame: frameLayout{
			localCount:            in.LocalCount,
			argCount:              in.ArgCount,
			hasHiddenReturnBuffer: in.ReturnIsValueType && in.ReturnTypeSize > 16,
		},
	}

	gc.AddRootsFromMask(in.GCRefMask, in.LocalCount,
		func(i int) int32 { return mc.frame.localOffset(i) },
		func(i int) int32 { return mc.frame.argOffset(i) },
	)

	if err := mc.compileMainBody(); err != nil {
		j.diag.Printf("jit[%s]: compile failed: %v", j.id, err)
		return nil, err
	}

	if err := mc.compileFunclets(); err != nil {
		j.diag.Printf("jit[%s]: funclet compile failed: %v", j.id, err)
		return nil, err
	}

	mc.applyPendingPatches()

	if buf.HasOverflow() {
		err := newErr(ErrCapacityOverflow, -1, "code buffer overflow (IL length %d)", len(in.IL))
		j.diag.Printf("jit[%s]: %v", j.id, err)
		return nil, err
	}

	ehClauses, err := mc.translateEHClauses()
	if err != nil {
		j.diag.Printf("jit[%s]: %v", j.id, err)
		return nil, err
	}

	result := &CompileResult{
		Code:            buf.Bytes(),
		FunctionPointer: buf.FunctionPointer(),
		NativeSize:      int32(buf.Position()),
		PrologueSize:    mc.prologueSize,
		StackAdjust:     mc.stackAdjust,
		EHClauses:       ehClauses,
		Funclets:        mc.funclets,
		GCInfo:          gc.Encode(),
	}

	if j.registry != nil {
		j.registry.Publish(in.AssemblyID, in.MethodToken, result.FunctionPointer)
	}

	return result, nil
}

// labelTable records (IL offset -> native offset) at every opcode
// boundary, and the eval-stack depth snapshot expected at that IL offset
// when it is a branch target, per spec §3.
type labelTable struct {
	nativeOffset map[int]int32
	stackAtLabel map[int]evalstack.Snapshot
}

func newLabelTable() *labelTable {
	return &labelTable{
		nativeOffset: make(map[int]int32),
		stackAtLabel: make(map[int]evalstack.Snapshot),
	}
}

func (l *labelTable) record(ilOffset int, nativeOffset int32) {
	l.nativeOffset[ilOffset] = nativeOffset
}

func (l *labelTable) recordStack(ilOffset int, snap evalstack.Snapshot) {
	if _, ok := l.stackAtLabel[ilOffset]; !ok {
		l.stackAtLabel[ilOffset] = snap
	}
}

func (l *labelTable) nativeFor(ilOffset int) (int32, bool) {
	off, ok := l.nativeOffset[ilOffset]
	return off, ok
}
