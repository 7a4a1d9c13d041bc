package runlog

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Replay reads every entry recorded at path, in order, calling callback
// for each. A missing file replays zero entries rather than erroring,
// since a target that has never crashed mid-set simply has none.
func Replay(path string, callback func(Entry) error) error {
	f, err := os.Open(path) //nolint:gosec // G304: path is caller-controlled, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("runlog: open %s: %w", path, err)
	}
	defer f.Close()

	info, valid, err := readHeader(f)
	if err != nil {
		return err
	}
	if !valid {
		// Empty file: no header written yet, nothing to replay.
		return nil
	}

	if _, err := f.Seek(info.HeaderLen, io.SeekStart); err != nil {
		return fmt.Errorf("runlog: seek %s: %w", path, err)
	}

	var reader io.Reader = bufio.NewReader(f)
	if info.Compressed {
		decompressor, err := zstd.NewReader(reader)
		if err != nil {
			return fmt.Errorf("runlog: new zstd reader: %w", err)
		}
		defer decompressor.Close()
		reader = decompressor
	}

	for {
		var entry Entry
		if err := decodeEntry(reader, &entry); err != nil {
			if err == io.EOF {
				return nil
			}
			return corruptErr(entry.Seq, err)
		}
		if err := callback(entry); err != nil {
			return fmt.Errorf("runlog: replay callback at entry %d: %w", entry.Seq, err)
		}
	}
}

// LatestHash scans path's entries and returns, for each path recorded,
// its most recently appended (seed, hash) pair — later entries in the
// same not-yet-flushed set win, mirroring how filedb.DB.Record overwrites
// a Stale slot in place.
func LatestHash(path string) (map[string]Entry, error) {
	latest := make(map[string]Entry)
	err := Replay(path, func(e Entry) error {
		latest[e.Path] = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}
