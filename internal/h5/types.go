package h5

// DType names the scalar element type of a dataset or table field.
type DType int

const (
	Float64 DType = iota
	Int64
	Uint64
	Int32
	Uint32
	Bool
	// FixedString8 carries its declared byte width in Field.Size.
	FixedString8
)

// Field describes one column of a compound table type.
type Field struct {
	Name string
	Type DType
	// Size is the byte width of the field. For FixedString8 it is the
	// declared string width; for everything else it is implied by Type
	// and may be left zero.
	Size int
}

// RecordBytes returns the total width of one record assembled from fields,
// in declaration order with no padding — matching the packed compound
// layout the original binding used.
func RecordBytes(fields []Field) int {
	total := 0
	for _, f := range fields {
		total += fieldWidth(f)
	}
	return total
}

// FieldOffset returns the byte offset and width of the field named name
// within a packed record of fields, and whether it was found. Used by
// TransferEngine's model-hamiltonian projection to locate a named
// parameter inside a compound record without hand-rolled offset math at
// every call site.
func FieldOffset(fields []Field, name string) (offset, size int, dtype DType, ok bool) {
	off := 0
	for _, f := range fields {
		w := fieldWidth(f)
		if f.Name == name {
			return off, w, f.Type, true
		}
		off += w
	}
	return 0, 0, 0, false
}

func fieldWidth(f Field) int {
	switch f.Type {
	case Float64, Int64, Uint64:
		return 8
	case Int32, Uint32:
		return 4
	case Bool:
		return 1
	case FixedString8:
		return f.Size
	default:
		return f.Size
	}
}

// DsetInfo describes a dataset object, fixed- or variable-shape, at a given
// path within one open file.
type DsetInfo struct {
	Path   string
	Exists bool
	DType  DType
	// Dims is the current extent of every dimension. Axis is the
	// dimension the TransferEngine stacks seeds along.
	Dims []uint64
	Axis int
}

// TableInfo describes a compound table object at a given path within one
// open file.
type TableInfo struct {
	Path       string
	Exists     bool
	Fields     []Field
	NumRecords uint64
}

// RecordBytes returns the packed width of one record of this table.
func (t TableInfo) RecordBytes() int { return RecordBytes(t.Fields) }
