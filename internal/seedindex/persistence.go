package seedindex

import (
	"encoding/binary"
	"fmt"

	"github.com/DavidAce/h5mbl/internal/h5"
)

// sidecarFields is the compound type of the persisted `{seed, index}`
// table: one int64 and one uint64, packed with no padding.
var sidecarFields = []h5.Field{
	{Name: "seed", Type: h5.Int64},
	{Name: "index", Type: h5.Uint64},
}

const (
	sidecarChunk       = 1000
	sidecarCompression = 4
)

func encodeRecord(r Record) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.Seed))
	binary.LittleEndian.PutUint64(buf[8:16], r.Index)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) != 16 {
		return Record{}, fmt.Errorf("seedindex: malformed record, want 16 bytes, got %d", len(b))
	}
	return Record{
		Seed:  int64(binary.LittleEndian.Uint64(b[0:8])),
		Index: binary.LittleEndian.Uint64(b[8:16]),
	}, nil
}

// SidecarPath returns the persisted table path for a target object at
// objectPath: "<parent>/.db/<basename>".
func SidecarPath(parentDir, objectBaseName string) string {
	return fmt.Sprintf("%s/.db/%s", parentDir, objectBaseName)
}

// Save (re)writes idx as a chunk-1000, compression-level-4 table sorted by
// seed, plus its `key` and `path` attributes, and marks idx clean on
// success.
func Save(file h5.File, sidecarPath string, idx *Index) error {
	if _, exists, err := file.Table(sidecarPath); err != nil {
		return fmt.Errorf("seedindex: save %s: %w", sidecarPath, err)
	} else if !exists {
		if err := file.CreateTable(sidecarPath, sidecarFields, sidecarChunk, sidecarCompression); err != nil {
			return fmt.Errorf("seedindex: create sidecar %s: %w", sidecarPath, err)
		}
	}

	records := idx.Records()
	buf := make([]byte, 0, len(records)*16)
	for _, r := range records {
		buf = append(buf, encodeRecord(r)...)
	}
	if err := file.WriteTableRecordsAt(sidecarPath, 0, buf, 16); err != nil {
		return fmt.Errorf("seedindex: write sidecar %s: %w", sidecarPath, err)
	}
	if err := file.WriteAttrString(sidecarPath, "key", idx.Key); err != nil {
		return fmt.Errorf("seedindex: write key attr %s: %w", sidecarPath, err)
	}
	if err := file.WriteAttrString(sidecarPath, "path", idx.Path); err != nil {
		return fmt.Errorf("seedindex: write path attr %s: %w", sidecarPath, err)
	}
	idx.MarkClean()
	return nil
}

// Load reads a sidecar table back into an Index. ok is false when no
// sidecar table exists yet at sidecarPath — the normal state for a target
// object seen for the first time.
func Load(file h5.File, sidecarPath string) (*Index, bool, error) {
	info, exists, err := file.Table(sidecarPath)
	if err != nil {
		return nil, false, fmt.Errorf("seedindex: load %s: %w", sidecarPath, err)
	}
	if !exists {
		return nil, false, nil
	}

	records := make([]Record, 0, info.NumRecords)
	for row := uint64(0); row < info.NumRecords; row++ {
		raw, err := file.ReadTableRecord(sidecarPath, row)
		if err != nil {
			return nil, false, fmt.Errorf("seedindex: read row %d of %s: %w", row, sidecarPath, err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, false, fmt.Errorf("seedindex: decode row %d of %s: %w", row, sidecarPath, err)
		}
		records = append(records, rec)
	}

	key, _, err := file.ReadAttrString(sidecarPath, "key")
	if err != nil {
		return nil, false, fmt.Errorf("seedindex: read key attr %s: %w", sidecarPath, err)
	}
	path, _, err := file.ReadAttrString(sidecarPath, "path")
	if err != nil {
		return nil, false, fmt.Errorf("seedindex: read path attr %s: %w", sidecarPath, err)
	}

	return FromRecords(key, path, records), true, nil
}
