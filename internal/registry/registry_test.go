package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProtonOS/baseline-jit/internal/registry"
)

func TestReserveMethodIsIdempotent(t *testing.T) {
	r := registry.New()
	a := r.ReserveMethod(1, 100)
	b := r.ReserveMethod(1, 100)
	require.Same(t, a, b)

	other := r.ReserveMethod(1, 101)
	require.NotSame(t, a, other)
}

func TestPublishBackfillsReservedCell(t *testing.T) {
	r := registry.New()
	cell := r.ReserveMethod(2, 5)
	require.Nil(t, cell.Load())

	var code byte
	r.Publish(2, 5, &code)
	require.Equal(t, &code, cell.Load())
}

func TestReserveCctorIsIdempotentAndHasStableAddr(t *testing.T) {
	r := registry.New()
	ctx1 := r.ReserveCctor(1, 42)
	ctx2 := r.ReserveCctor(1, 42)
	require.Same(t, ctx1, ctx2)
	require.NotZero(t, ctx1.Addr())
	require.Nil(t, ctx1.FnPtr.Load())
}
