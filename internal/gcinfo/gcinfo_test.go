package gcinfo_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProtonOS/baseline-jit/internal/gcinfo"
)

func TestAddRootIsIdempotent(t *testing.T) {
	b := gcinfo.NewBuilder()
	b.AddRoot(-64)
	b.AddRoot(-64)
	b.AddRoot(-128)
	require.Equal(t, []int32{-64, -128}, b.Roots())
}

func TestAddRootsFromMask(t *testing.T) {
	b := gcinfo.NewBuilder()
	// bit 0 -> local 0, bit 2 -> arg 0 (localCount=2)
	mask := uint64(1<<0 | 1<<2)
	b.AddRootsFromMask(mask, 2,
		func(i int) int32 { return -64 * int32(i+1) },
		func(i int) int32 { return 16 + 8*int32(i) },
	)
	require.Equal(t, []int32{-64, 16}, b.Roots())
}

func TestSafePointsRecordedInOrder(t *testing.T) {
	b := gcinfo.NewBuilder()
	b.AddSafePoint(10)
	b.AddSafePoint(25)
	require.Equal(t, []int32{10, 25}, b.SafePoints())
}

func TestEncodeRoundtripLayout(t *testing.T) {
	b := gcinfo.NewBuilder()
	b.AddRoot(-8)
	b.AddSafePoint(5)
	b.AddSafePoint(12)

	buf := b.Encode()
	require.EqualValues(t, 1, binary.LittleEndian.Uint32(buf[0:]))
	require.EqualValues(t, -8, int32(binary.LittleEndian.Uint32(buf[4:])))
	require.EqualValues(t, 2, binary.LittleEndian.Uint32(buf[8:]))
	require.EqualValues(t, 5, int32(binary.LittleEndian.Uint32(buf[12:])))
	require.EqualValues(t, 12, int32(binary.LittleEndian.Uint32(buf[16:])))
}
