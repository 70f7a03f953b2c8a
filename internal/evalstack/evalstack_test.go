package evalstack_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProtonOS/baseline-jit/internal/asm"
	"github.com/ProtonOS/baseline-jit/internal/evalstack"
)

func TestPushPopTracksDepthAndBytes(t *testing.T) {
	s := evalstack.New()
	s.Push(evalstack.NewEntry(evalstack.Int32, 4))
	s.Push(evalstack.NewEntry(evalstack.Int64, 8))
	require.Equal(t, 2, s.Depth())
	require.EqualValues(t, 16, s.TotalBytes())

	top := s.Pop()
	require.Equal(t, evalstack.Int64, top.Kind)
	require.EqualValues(t, 8, s.TotalBytes())
}

func TestValueTypeEntrySizing(t *testing.T) {
	require.EqualValues(t, 8, evalstack.NewValueTypeEntry(1).ByteSize)
	require.EqualValues(t, 8, evalstack.NewValueTypeEntry(8).ByteSize)
	require.EqualValues(t, 16, evalstack.NewValueTypeEntry(9).ByteSize)
	require.EqualValues(t, 16, evalstack.NewValueTypeEntry(16).ByteSize)
	require.EqualValues(t, 24, evalstack.NewValueTypeEntry(17).ByteSize)
}

func TestPeekRSPOffsetSumsByteSizes(t *testing.T) {
	s := evalstack.New()
	s.Push(evalstack.NewEntry(evalstack.Int32, 4))     // bottom, offset 24 from RSP
	s.Push(evalstack.NewValueTypeEntry(12))            // 16 bytes
	s.Push(evalstack.NewEntry(evalstack.ObjectRef, 8)) // top

	require.EqualValues(t, 0, s.PeekRSPOffset(0))
	require.EqualValues(t, 8, s.PeekRSPOffset(1))
	require.EqualValues(t, 24, s.PeekRSPOffset(2))
}

func TestSaveRestoreRoundtrips(t *testing.T) {
	s := evalstack.New()
	s.Push(evalstack.NewEntry(evalstack.Int32, 4))
	snap := s.Save()

	s.Push(evalstack.NewEntry(evalstack.Int64, 8))
	require.Equal(t, 2, s.Depth())

	s.Restore(snap)
	require.Equal(t, 1, s.Depth())
	require.EqualValues(t, 8, s.TotalBytes())
}

func TestPushRegR0AndPopToR0EmitPushPop(t *testing.T) {
	buf := asm.NewCodeBuffer(make([]byte, 32))
	e := asm.NewEmitter(buf)
	s := evalstack.New()

	evalstack.PushRegR0(e, s, evalstack.Int64, asm.RAX)
	require.Equal(t, 1, s.Depth())
	require.EqualValues(t, 8, s.TotalBytes())

	entry := evalstack.PopToR0(e, s, asm.RAX)
	require.Equal(t, evalstack.Int64, entry.Kind)
	require.Equal(t, 0, s.Depth())

	code := buf.Bytes()
	require.Equal(t, byte(0x50), code[0]) // push rax
	require.Equal(t, byte(0x58), code[1]) // pop rax
}

func TestPushValueTypeCopiesAndTracksOneEntry(t *testing.T) {
	buf := asm.NewCodeBuffer(make([]byte, 64))
	e := asm.NewEmitter(buf)
	s := evalstack.New()

	evalstack.PushValueType(e, s, 12, asm.RBX, 0)
	require.Equal(t, 1, s.Depth())
	require.EqualValues(t, 16, s.TotalBytes()) // 12 rounds to 16

	entry := evalstack.PopValueTypeTo(e, s, asm.RDI, 0)
	require.EqualValues(t, 12, entry.RawSize)
	require.Equal(t, 0, s.Depth())
}

func TestIsGCRef(t *testing.T) {
	require.True(t, evalstack.ObjectRef.IsGCRef())
	require.True(t, evalstack.ManagedPtr.IsGCRef())
	require.False(t, evalstack.Int32.IsGCRef())
	require.False(t, evalstack.UnmanagedPtr.IsGCRef())
}
