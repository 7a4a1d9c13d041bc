package transfer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/DavidAce/h5mbl/internal/h5"
)

// decodeUint64 reinterprets the size bytes at offset within record as an
// unsigned integer, widening smaller integer types. Used for the
// variable-shape side-table dimension lookup and the crono iteration
// column, neither of which commits to one integer width in the source.
func decodeUint64(record []byte, offset, size int, dtype h5.DType) (uint64, error) {
	if offset+size > len(record) {
		return 0, fmt.Errorf("transfer: field at offset %d size %d exceeds record of %d bytes", offset, size, len(record))
	}
	switch dtype {
	case h5.Uint64, h5.Int64:
		return binary.LittleEndian.Uint64(record[offset : offset+8]), nil
	case h5.Uint32, h5.Int32:
		return uint64(binary.LittleEndian.Uint32(record[offset : offset+4])), nil
	case h5.Float64:
		return uint64(decodeFloat64Bits(record[offset : offset+8])), nil
	default:
		return 0, fmt.Errorf("transfer: field dtype %v is not integer-decodable", dtype)
	}
}

// decodeFloat64 reinterprets the field at offset as a float64, widening
// integer types when the hamiltonian table stores a field as an integer
// count rather than a float.
func decodeFloat64(record []byte, offset, size int, dtype h5.DType) (float64, error) {
	if offset+size > len(record) {
		return 0, fmt.Errorf("transfer: field at offset %d size %d exceeds record of %d bytes", offset, size, len(record))
	}
	switch dtype {
	case h5.Float64:
		return decodeFloat64Bits(record[offset : offset+8]), nil
	case h5.Uint64:
		return float64(binary.LittleEndian.Uint64(record[offset : offset+8])), nil
	case h5.Int64:
		return float64(int64(binary.LittleEndian.Uint64(record[offset : offset+8]))), nil
	case h5.Uint32:
		return float64(binary.LittleEndian.Uint32(record[offset : offset+4])), nil
	case h5.Int32:
		return float64(int32(binary.LittleEndian.Uint32(record[offset : offset+4]))), nil
	default:
		return 0, fmt.Errorf("transfer: field dtype %v is not float-decodable", dtype)
	}
}

func decodeFloat64Bits(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// encodeFloats packs values as consecutive little-endian float64 fields,
// the layout every model hamiltonian table and its auxiliary scalar
// datasets share.
func encodeFloats(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], math.Float64bits(v))
	}
	return buf
}
