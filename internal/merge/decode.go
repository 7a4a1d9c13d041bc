package merge

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/DavidAce/h5mbl/internal/h5"
)

// decodeFloat64 widens a packed record field of any numeric DType to
// float64, mirroring internal/transfer/record.go's decoder (unexported
// there, so readModelId carries its own small copy rather than reaching
// across a package boundary for one helper).
func decodeFloat64(record []byte, offset, size int, dtype h5.DType) (float64, error) {
	if offset < 0 || size <= 0 || offset+size > len(record) {
		return 0, fmt.Errorf("merge: field out of range: offset=%d size=%d len=%d", offset, size, len(record))
	}
	b := record[offset : offset+size]
	switch dtype {
	case h5.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case h5.Int64:
		return float64(int64(binary.LittleEndian.Uint64(b))), nil
	case h5.Uint64:
		return float64(binary.LittleEndian.Uint64(b)), nil
	case h5.Int32:
		return float64(int32(binary.LittleEndian.Uint32(b))), nil
	case h5.Uint32:
		return float64(binary.LittleEndian.Uint32(b)), nil
	default:
		return 0, fmt.Errorf("merge: field has non-numeric type %v", dtype)
	}
}
