// Package cil defines the ECMA-335 CIL opcode space this JIT dispatches
// over: the single-byte opcode set, the 0xFE-prefixed two-byte set, and the
// operand shape each opcode carries (spec §4.4's "Read the opcode byte,
// read any inline operands per ECMA-335 Partition III").
package cil

// Opcode identifies a single-byte CIL opcode. Two-byte (0xFE-prefixed)
// opcodes are identified by PrefixedOpcode instead.
type Opcode byte

// Single-byte opcodes used by this JIT. Not an exhaustive ECMA-335 listing;
// only opcodes a component in SPEC_FULL.md actually lowers are named, per
// spec §4.4's scope (the dispatcher is a "single-byte dispatch with a
// secondary table for the 0xFE prefix", not a full CLI disassembler).
const (
	OpNop        Opcode = 0x00
	OpBreak      Opcode = 0x01
	OpLdarg0     Opcode = 0x02
	OpLdarg1     Opcode = 0x03
	OpLdarg2     Opcode = 0x04
	OpLdarg3     Opcode = 0x05
	OpLdloc0     Opcode = 0x06
	OpLdloc1     Opcode = 0x07
	OpLdloc2     Opcode = 0x08
	OpLdloc3     Opcode = 0x09
	OpStloc0     Opcode = 0x0A
	OpStloc1     Opcode = 0x0B
	OpStloc2     Opcode = 0x0C
	OpStloc3     Opcode = 0x0D
	OpLdargS     Opcode = 0x0E // uint8
	OpLdargaS    Opcode = 0x0F // uint8
	OpStargS     Opcode = 0x10 // uint8
	OpLdlocS     Opcode = 0x11 // uint8
	OpLdlocaS    Opcode = 0x12 // uint8
	OpStlocS     Opcode = 0x13 // uint8
	OpLdnull     Opcode = 0x14
	OpLdcI4M1    Opcode = 0x15
	OpLdcI40     Opcode = 0x16
	OpLdcI41     Opcode = 0x17
	OpLdcI42     Opcode = 0x18
	OpLdcI43     Opcode = 0x19
	OpLdcI44     Opcode = 0x1A
	OpLdcI45     Opcode = 0x1B
	OpLdcI46     Opcode = 0x1C
	OpLdcI47     Opcode = 0x1D
	OpLdcI48     Opcode = 0x1E
	OpLdcI4S     Opcode = 0x1F // sbyte
	OpLdcI4      Opcode = 0x20 // int32
	OpLdcI8      Opcode = 0x21 // int64
	OpLdcR4      Opcode = 0x22 // float32 bits
	OpLdcR8      Opcode = 0x23 // float64 bits
	OpDup        Opcode = 0x25
	OpPop        Opcode = 0x26
	OpJmp        Opcode = 0x27 // uint32 token (unsupported at this tier)
	OpCall       Opcode = 0x28 // uint32 token
	OpCalli      Opcode = 0x29 // uint32 token (StandAloneSig)
	OpRet        Opcode = 0x2A
	OpBrS        Opcode = 0x2B // sbyte
	OpBrfalseS   Opcode = 0x2C // sbyte
	OpBrtrueS    Opcode = 0x2D // sbyte
	OpBeqS       Opcode = 0x2E // sbyte
	OpBgeS       Opcode = 0x2F // sbyte
	OpBgtS       Opcode = 0x30 // sbyte
	OpBleS       Opcode = 0x31 // sbyte
	OpBltS       Opcode = 0x32 // sbyte
	OpBneUnS     Opcode = 0x33 // sbyte
	OpBgeUnS     Opcode = 0x34 // sbyte
	OpBgtUnS     Opcode = 0x35 // sbyte
	OpBleUnS     Opcode = 0x36 // sbyte
	OpBltUnS     Opcode = 0x37 // sbyte
	OpBr         Opcode = 0x38 // int32
	OpBrfalse    Opcode = 0x39 // int32
	OpBrtrue     Opcode = 0x3A // int32
	OpBeq        Opcode = 0x3B // int32
	OpBge        Opcode = 0x3C // int32
	OpBgt        Opcode = 0x3D // int32
	OpBle        Opcode = 0x3E // int32
	OpBlt        Opcode = 0x3F // int32
	OpBneUn      Opcode = 0x40 // int32
	OpBgeUn      Opcode = 0x41 // int32
	OpBgtUn      Opcode = 0x42 // int32
	OpBleUn      Opcode = 0x43 // int32
	OpBltUn      Opcode = 0x44 // int32
	OpSwitch     Opcode = 0x45 // uint32 count + N*int32
	OpLdindI1    Opcode = 0x46
	OpLdindU1    Opcode = 0x47
	OpLdindI2    Opcode = 0x48
	OpLdindU2    Opcode = 0x49
	OpLdindI4    Opcode = 0x4A
	OpLdindU4    Opcode = 0x4B
	OpLdindI8    Opcode = 0x4C
	OpLdindI     Opcode = 0x4D
	OpLdindR4    Opcode = 0x4E
	OpLdindR8    Opcode = 0x4F
	OpLdindRef   Opcode = 0x50
	OpStindRef   Opcode = 0x51
	OpStindI1    Opcode = 0x52
	OpStindI2    Opcode = 0x53
	OpStindI4    Opcode = 0x54
	OpStindI8    Opcode = 0x55
	OpStindR4    Opcode = 0x56
	OpStindR8    Opcode = 0x57
	OpAdd        Opcode = 0x58
	OpSub        Opcode = 0x59
	OpMul        Opcode = 0x5A
	OpDiv        Opcode = 0x5B
	OpDivUn      Opcode = 0x5C
	OpRem        Opcode = 0x5D
	OpRemUn      Opcode = 0x5E
	OpAnd        Opcode = 0x5F
	OpOr         Opcode = 0x60
	OpXor        Opcode = 0x61
	OpShl        Opcode = 0x62
	OpShr        Opcode = 0x63
	OpShrUn      Opcode = 0x64
	OpNeg        Opcode = 0x65
	OpNot        Opcode = 0x66
	OpConvI1     Opcode = 0x67
	OpConvI2     Opcode = 0x68
	OpConvI4     Opcode = 0x69
	OpConvI8     Opcode = 0x6A
	OpConvR4     Opcode = 0x6B
	OpConvR8     Opcode = 0x6C
	OpConvU4     Opcode = 0x6D
	OpConvU8     Opcode = 0x6E
	OpCallvirt   Opcode = 0x6F // uint32 token
	OpCpobj      Opcode = 0x70 // uint32 token
	OpLdobj      Opcode = 0x71 // uint32 token
	OpLdstr      Opcode = 0x72 // uint32 token
	OpNewobj     Opcode = 0x73 // uint32 token
	OpCastclass  Opcode = 0x74 // uint32 token
	OpIsinst     Opcode = 0x75 // uint32 token
	OpConvRUn    Opcode = 0x76
	OpUnbox      Opcode = 0x79 // uint32 token
	OpThrow      Opcode = 0x7A
	OpLdfld      Opcode = 0x7B // uint32 token
	OpLdflda     Opcode = 0x7C // uint32 token
	OpStfld      Opcode = 0x7D // uint32 token
	OpLdsfld     Opcode = 0x7E // uint32 token
	OpLdsflda    Opcode = 0x7F // uint32 token
	OpStsfld     Opcode = 0x80 // uint32 token
	OpStobj      Opcode = 0x81 // uint32 token
	OpConvOvfI1Un Opcode = 0x82
	OpConvOvfI2Un Opcode = 0x83
	OpConvOvfI4Un Opcode = 0x84
	OpConvOvfI8Un Opcode = 0x85
	OpConvOvfU1Un Opcode = 0x86
	OpConvOvfU2Un Opcode = 0x87
	OpConvOvfU4Un Opcode = 0x88
	OpConvOvfU8Un Opcode = 0x89
	OpConvOvfIUn  Opcode = 0x8A
	OpConvOvfUUn  Opcode = 0x8B
	OpBox        Opcode = 0x8C // uint32 token
	OpNewarr     Opcode = 0x8D // uint32 token
	OpLdlen      Opcode = 0x8E
	OpLdelema    Opcode = 0x8F // uint32 token
	OpLdelemI1   Opcode = 0x90
	OpLdelemU1   Opcode = 0x91
	OpLdelemI2   Opcode = 0x92
	OpLdelemU2   Opcode = 0x93
	OpLdelemI4   Opcode = 0x94
	OpLdelemU4   Opcode = 0x95
	OpLdelemI8   Opcode = 0x96
	OpLdelemI    Opcode = 0x97
	OpLdelemR4   Opcode = 0x98
	OpLdelemR8   Opcode = 0x99
	OpLdelemRef  Opcode = 0x9A
	OpStelemI    Opcode = 0x9B
	OpStelemI1   Opcode = 0x9C
	OpStelemI2   Opcode = 0x9D
	OpStelemI4   Opcode = 0x9E
	OpStelemI8   Opcode = 0x9F
	OpStelemR4   Opcode = 0xA0
	OpStelemR8   Opcode = 0xA1
	OpStelemRef  Opcode = 0xA2
	OpLdelem     Opcode = 0xA3 // uint32 token
	OpStelem     Opcode = 0xA4 // uint32 token
	OpUnboxAny   Opcode = 0xA5 // uint32 token
	OpConvOvfI1  Opcode = 0xB3
	OpConvOvfU1  Opcode = 0xB4
	OpConvOvfI2  Opcode = 0xB5
	OpConvOvfU2  Opcode = 0xB6
	OpConvOvfI4  Opcode = 0xB7
	OpConvOvfU4  Opcode = 0xB8
	OpConvOvfI8  Opcode = 0xB9
	OpConvOvfU8  Opcode = 0xBA
	OpRefanyval  Opcode = 0xC2 // uint32 token
	OpCkfinite   Opcode = 0xC3
	OpLdtoken    Opcode = 0xD0 // uint32 token
	OpConvU2     Opcode = 0xD1
	OpConvU1     Opcode = 0xD2
	OpConvI      Opcode = 0xD3
	OpConvOvfI   Opcode = 0xD4
	OpConvOvfU   Opcode = 0xD5
	OpAddOvf     Opcode = 0xD6
	OpAddOvfUn   Opcode = 0xD7
	OpMulOvf     Opcode = 0xD8
	OpMulOvfUn   Opcode = 0xD9
	OpSubOvf     Opcode = 0xDA
	OpSubOvfUn   Opcode = 0xDB
	OpEndfinally Opcode = 0xDC
	OpLeave      Opcode = 0xDD // int32
	OpLeaveS     Opcode = 0xDE // sbyte
	OpStindI     Opcode = 0xDF
	OpConvU      Opcode = 0xE0
	OpPrefix     Opcode = 0xFE
)

// PrefixedOpcode identifies the second byte of a 0xFE-prefixed two-byte
// opcode.
type PrefixedOpcode byte

const (
	OpArglistPrefixed       PrefixedOpcode = 0x00
	OpCeq                   PrefixedOpcode = 0x01
	OpCgt                   PrefixedOpcode = 0x02
	OpCgtUn                 PrefixedOpcode = 0x03
	OpClt                   PrefixedOpcode = 0x04
	OpCltUn                 PrefixedOpcode = 0x05
	OpLdftn                 PrefixedOpcode = 0x06 // uint32 token
	OpLdvirtftn             PrefixedOpcode = 0x07 // uint32 token
	OpLdargLong             PrefixedOpcode = 0x09 // uint16
	OpLdargaLong            PrefixedOpcode = 0x0A // uint16
	OpStargLong             PrefixedOpcode = 0x0B // uint16
	OpLdlocLong             PrefixedOpcode = 0x0C // uint16
	OpLdlocaLong            PrefixedOpcode = 0x0D // uint16
	OpStlocLong             PrefixedOpcode = 0x0E // uint16
	OpLocalloc              PrefixedOpcode = 0x0F
	OpEndfilter             PrefixedOpcode = 0x11
	OpUnaligned             PrefixedOpcode = 0x12 // uint8
	OpVolatile              PrefixedOpcode = 0x13
	OpTail                  PrefixedOpcode = 0x14
	OpInitobj               PrefixedOpcode = 0x15 // uint32 token
	OpConstrained           PrefixedOpcode = 0x16 // uint32 token
	OpCpblk                 PrefixedOpcode = 0x17
	OpInitblk               PrefixedOpcode = 0x18
	OpNo                    PrefixedOpcode = 0x19 // uint8
	OpRethrow               PrefixedOpcode = 0x1A
	OpSizeof                PrefixedOpcode = 0x1C // uint32 token
	OpRefanytype            PrefixedOpcode = 0x1D
	OpReadonly              PrefixedOpcode = 0x1E
)
