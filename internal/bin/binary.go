package bin

import (
	"encoding/binary"
	"math"
)

func PutU32LE(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func PutU64LE(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func U32LE(src []byte) uint32       { return binary.LittleEndian.Uint32(src) }
func U64LE(src []byte) uint64       { return binary.LittleEndian.Uint64(src) }

func PutI32LE(dst []byte, v int32) { PutU32LE(dst, uint32(v)) }
func PutI64LE(dst []byte, v int64) { PutU64LE(dst, uint64(v)) }
func I32LE(src []byte) int32       { return int32(U32LE(src)) }
func I64LE(src []byte) int64       { return int64(U64LE(src)) }

func PutF64LE(dst []byte, v float64) { PutU64LE(dst, math.Float64bits(v)) }
func F64LE(src []byte) float64       { return math.Float64frombits(U64LE(src)) }

// AppendI32LE appends v to dst in little-endian order.
func AppendI32LE(dst []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(dst, uint32(v))
}

// AppendI64LE appends v to dst in little-endian order.
func AppendI64LE(dst []byte, v int64) []byte {
	return binary.LittleEndian.AppendUint64(dst, uint64(v))
}

// AppendF64LE appends the IEEE-754 bits of v to dst in little-endian order.
func AppendF64LE(dst []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
}
