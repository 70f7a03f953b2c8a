package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProtonOS/baseline-jit/internal/resolver"
)

func TestNativeCodeCellStartsNilAndStoresPointer(t *testing.T) {
	cell := &resolver.NativeCodeCell{}
	require.Nil(t, cell.Load())

	var code byte = 0x90
	cell.Store(&code)
	require.Equal(t, &code, cell.Load())
}

type stubMethodResolver struct {
	result resolver.ResolvedMethod
	err    error
}

func (s stubMethodResolver) ResolveMethod(token, assemblyID uint32) (resolver.ResolvedMethod, error) {
	return s.result, s.err
}

func TestResolversBundleIsOptional(t *testing.T) {
	var rs resolver.Resolvers
	require.Nil(t, rs.Method)

	rs.Method = stubMethodResolver{result: resolver.ResolvedMethod{ArgCount: 2}}
	got, err := rs.Method.ResolveMethod(1, 0)
	require.NoError(t, err)
	require.Equal(t, 2, got.ArgCount)
}
