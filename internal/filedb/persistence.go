package filedb

import (
	"fmt"

	"github.com/DavidAce/h5mbl/internal/h5"
)

// TablePath is the fixed path of the FileDB table inside every merged
// target file (spec.md §6 "`<parent>/.db/files`").
const TablePath = ".db/files"

var fields = []h5.Field{
	{Name: "seed", Type: h5.Int64},
	{Name: "path", Type: h5.FixedString8, Size: MaxPathWidth},
	{Name: "hash", Type: h5.FixedString8, Size: HashWidth},
}

const recordBytes = 8 + MaxPathWidth + HashWidth

func encodeRecord(id FileId) []byte {
	buf := make([]byte, recordBytes)
	putInt64(buf[0:8], id.Seed)
	putFixedString(buf[8:8+MaxPathWidth], id.Path)
	putFixedString(buf[8+MaxPathWidth:], id.Hash)
	return buf
}

func decodeRecord(b []byte) (FileId, error) {
	if len(b) != recordBytes {
		return FileId{}, fmt.Errorf("filedb: malformed record, want %d bytes, got %d", recordBytes, len(b))
	}
	return FileId{
		Seed: getInt64(b[0:8]),
		Path: getFixedString(b[8 : 8+MaxPathWidth]),
		Hash: getFixedString(b[8+MaxPathWidth:]),
	}, nil
}

func putInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func getInt64(b []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return int64(u)
}

func putFixedString(b []byte, s string) {
	n := copy(b, s)
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
}

func getFixedString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// chunkSize and compressionLevel for the FileDB table: 1000 records of
// recordBytes (296) each, about 289 KiB per chunk, at compression level 4.
const (
	chunkSize        = 1000
	compressionLevel = 4
)

// Save (re)writes db as a table at TablePath sorted by seed, and marks db
// clean on success.
func Save(file h5.File, db *DB) error {
	if _, exists, err := file.Table(TablePath); err != nil {
		return fmt.Errorf("filedb: save: %w", err)
	} else if !exists {
		if err := file.CreateTable(TablePath, fields, chunkSize, compressionLevel); err != nil {
			return fmt.Errorf("filedb: create %s: %w", TablePath, err)
		}
	}

	records := db.Records()
	buf := make([]byte, 0, len(records)*recordBytes)
	for _, r := range records {
		buf = append(buf, encodeRecord(r)...)
	}
	if len(buf) > 0 {
		if err := file.WriteTableRecordsAt(TablePath, 0, buf, recordBytes); err != nil {
			return fmt.Errorf("filedb: write %s: %w", TablePath, err)
		}
	}
	db.MarkClean()
	return nil
}

// Load reads TablePath back from file into a DB. ok is false when the
// target file has no FileDB table yet — the normal state for a brand new
// target file.
func Load(file h5.File) (*DB, bool, error) {
	info, exists, err := file.Table(TablePath)
	if err != nil {
		return nil, false, fmt.Errorf("filedb: load: %w", err)
	}
	if !exists {
		return nil, false, nil
	}

	records := make([]FileId, 0, info.NumRecords)
	for row := uint64(0); row < info.NumRecords; row++ {
		raw, err := file.ReadTableRecord(TablePath, row)
		if err != nil {
			return nil, false, fmt.Errorf("filedb: read row %d: %w", row, err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, false, fmt.Errorf("filedb: decode row %d: %w", row, err)
		}
		records = append(records, rec)
	}

	db, err := FromRecords(records)
	if err != nil {
		return nil, false, err
	}
	return db, true, nil
}
