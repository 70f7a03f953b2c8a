package resolver

// MethodResolver resolves a method metadata token to a ResolvedMethod
// record. Implementations may block on metadata I/O or trigger nested
// compilation (spec §5's "reentrancy" note); this package makes no
// assumption beyond "returns a final value synchronously".
type MethodResolver interface {
	ResolveMethod(token uint32, assemblyID uint32) (ResolvedMethod, error)
}

// TypeResolver resolves a type metadata token to a ResolvedType record.
type TypeResolver interface {
	ResolveType(token uint32, assemblyID uint32) (ResolvedType, error)
}

// FieldResolver resolves a field metadata token to a ResolvedField record.
type FieldResolver interface {
	ResolveField(token uint32, assemblyID uint32) (ResolvedField, error)
}

// StringResolver resolves a user-string heap token to an interned string
// object.
type StringResolver interface {
	ResolveString(token uint32, assemblyID uint32) (ResolvedString, error)
}

// StaticDataResolver resolves a field token that carries static
// initializer data, used by ldtoken + InitializeArray (spec §4.9/§4.10).
// Kept distinct from FieldResolver since most field tokens never need it.
type StaticDataResolver interface {
	ResolveStaticData(token uint32, assemblyID uint32) (StaticDataHandle, error)
}

// Resolvers bundles the four (plus static-data) callbacks a single compile
// call needs, per spec §6's "four callbacks: MethodResolver, TypeResolver,
// FieldResolver, StringResolver". Any field may be nil if the method body
// provably never needs that resolver; a nil call is a resolver-failure
// CompileError, not a panic.
type Resolvers struct {
	Method     MethodResolver
	Type       TypeResolver
	Field      FieldResolver
	String     StringResolver
	StaticData StaticDataResolver
}

// RuntimeHelpers carries the addresses of the host-provided allocation and
// type-test routines that compiled code calls into directly, per spec
// §4.9's RhpNewFast/RhpNewArray/IsAssignableTo/NewMDArrayND contract. A
// zero address for a helper that a method body ends up needing surfaces as
// a resolver-failure CompileError rather than a call to address zero.
type RuntimeHelpers struct {
	NewFast        uintptr // RhpNewFast(MT) -> object, in RAX
	NewArray       uintptr // RhpNewArray(arrayMT, count) -> array, in RAX
	IsAssignableTo uintptr // IsAssignableTo(objMT, targetMT) -> bool, in RAX
	NewMDArray     uintptr // NewMDArrayND(MT, dim0, dim1, ...) -> array, in RAX

	// Throw/Rethrow never return, per spec §4.7: the host personality
	// routine takes over unwinding from here.
	Throw   uintptr // Throw(exceptionObj), exceptionObj in RCX
	Rethrow uintptr // Rethrow(), re-raises the funclet's current exception
}
