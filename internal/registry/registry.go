// Package registry implements the one piece of cross-compilation shared
// state spec §5 allows: the compiled-method registry and the cctor-context
// table. Both are append-only for new entries with per-entry interior
// mutability for the "now compiled" transition, per spec §9's "Use atomic
// pointer fields for the registry's native-code slots to permit lock-free
// reads from emitted code."
//
// Grounded on the teacher's moduleEngine/compiledFunction pairing in
// internal/engine/compiler/engine.go, which holds one compiledFunction per
// function index behind a pointer the engine mutates exactly once on
// first compilation — the same "reserve an entry, backfill it later"
// shape this package implements for recursive managed-call compilation.
package registry

import (
	"sync"
	"unsafe"

	"github.com/ProtonOS/baseline-jit/internal/resolver"
)

// methodKey identifies a method across assemblies; mirrors the
// (AssemblyID, MethodToken) pairing ResolvedMethod already carries.
type methodKey struct {
	assemblyID uint32
	token      uint32
}

// Registry is the externally-owned, cross-compilation shared store of
// compiled-method entries and cctor contexts. One Registry is shared by
// every JIT instance in a process; individual compilations never hold
// their own copy.
type Registry struct {
	mu       sync.Mutex
	methods  map[methodKey]*resolver.NativeCodeCell
	cctors   map[methodKey]*CctorContext
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		methods: make(map[methodKey]*resolver.NativeCodeCell),
		cctors:  make(map[methodKey]*CctorContext),
	}
}

// ReserveMethod returns the NativeCodeCell for (assemblyID, token),
// creating an empty (nil-native-code) one if this is the first time the
// method has been referenced. Safe for concurrent use; a method entering
// compilation twice (mutual recursion) observes the same cell both times.
func (r *Registry) ReserveMethod(assemblyID, token uint32) *resolver.NativeCodeCell {
	key := methodKey{assemblyID, token}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cell, ok := r.methods[key]; ok {
		return cell
	}
	cell := &resolver.NativeCodeCell{}
	r.methods[key] = cell
	return cell
}

// Publish stores the final native code pointer for an already-reserved
// method. No-op guard against a double-publish is intentionally absent:
// the JIT's single-threaded-per-instance model (spec §5) means exactly one
// compilation owns the right to publish a given cell.
func (r *Registry) Publish(assemblyID, token uint32, code *byte) {
	r.ReserveMethod(assemblyID, token).Store(code)
}

// CctorContext is the per-type static-constructor trigger record
// ldsfld/stsfld/ldsflda consult, per spec §4.6: "load the context address,
// load and test the context's function-pointer word; if non-zero, null the
// word and call the function."
type CctorContext struct {
	// FnPtr is loaded and cleared by emitted code, not by this package;
	// this struct only owns the memory the cctor preamble dereferences.
	FnPtr atomicFnPtr
}

// atomicFnPtr mirrors resolver.NativeCodeCell's atomic-pointer shape for
// the cctor function-pointer word, kept as a distinct type since cctor
// context semantics (clear-on-first-call) differ from the registry's
// write-once compiled-code semantics.
type atomicFnPtr struct {
	cell resolver.NativeCodeCell
}

func (a *atomicFnPtr) Load() *byte   { return a.cell.Load() }
func (a *atomicFnPtr) Store(p *byte) { a.cell.Store(p) }

// Addr returns the address of the context's function-pointer word, for
// embedding as an immediate in the cctor preamble emitted at ldsfld/stsfld
// sites (spec §4.6's "load the context address").
func (c *CctorContext) Addr() uintptr {
	return uintptr(unsafe.Pointer(&c.FnPtr))
}

// ReserveCctor returns the CctorContext for a declaring type, creating one
// the first time the type is referenced by a static field access.
func (r *Registry) ReserveCctor(assemblyID, typeToken uint32) *CctorContext {
	key := methodKey{assemblyID, typeToken}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx, ok := r.cctors[key]; ok {
		return ctx
	}
	ctx := &CctorContext{}
	r.cctors[key] = ctx
	return ctx
}
