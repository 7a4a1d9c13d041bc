// Package runlog is a forensic progress journal for a merge target that
// is still mid-parameter-set. internal/merge.Driver only persists a
// target's FileDB at a parameter-set boundary or at final flush; runlog
// closes the gap in between by recording, one entry at a time, which
// source files have already landed in the target's current (unflushed)
// set.
//
// Driver only writes and truncates this log; it never reads it back to
// change a classify decision. A crash mid-set can leave a file's
// buffered Crono/Scale rows unwritten even though its Model/Table/Dset
// rows and its runlog entry already landed, so replaying the journal to
// mark those files done on the next run would risk calling a genuinely
// incomplete merge finished. Recovering a crashed mid-set run means
// re-running over that parameter set's directory; the journal's purpose
// is to leave an operator something to inspect (LatestHash, Replay)
// rather than to drive automatic recovery.
package runlog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DavidAce/h5mbl/resource"
	"github.com/klauspost/compress/zstd"
)

// Suffix is appended to a target file's path to derive its runlog path.
const Suffix = ".runlog"

// PathFor returns the runlog path for a merge target at targetPath.
func PathFor(targetPath string) string {
	return targetPath + Suffix
}

// Options configures a Log.
type Options struct {
	// Compress enables zstd compression of the entry stream.
	Compress bool
	// CompressionLevel sets the zstd compression level (1-22). Only
	// meaningful when Compress is true.
	CompressionLevel int
	// Sync fsyncs after every Append. When false, entries are only
	// durable once the OS flushes its page cache, trading durability
	// for throughput on high-seed-count directories.
	Sync bool
	// Resources, when set, throttles the journal's raw byte stream
	// through the same I/O budget a MergeDriver's source reads and
	// target writes draw from, so a run with heavy append traffic
	// cannot starve everything else sharing that Controller.
	Resources *resource.Controller
}

// DefaultOptions mirrors the defaults a MergeDriver runs with: compressed,
// synced, since the journal only exists to survive a crash.
var DefaultOptions = Options{
	Compress:         true,
	CompressionLevel: 3,
	Sync:             true,
}

// Log is the append-only journal for one target file's in-progress
// parameter set.
type Log struct {
	mu         sync.Mutex
	file       *os.File
	writer     io.Writer
	bufWriter  *bufio.Writer
	compressor *zstd.Encoder
	path       string
	compressed bool
	level      int
	dataOffset int64
	sync       bool
	seq        uint64
	resources  *resource.Controller
}

// Open creates or reopens the runlog at path. An existing, non-empty
// file is resumed in place (its header dictates compression, not opts);
// a fresh file is initialized from opts.
func Open(path string, opts Options) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("runlog: mkdir %s: %w", filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // G304: path is caller-controlled, not user input
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("runlog: stat %s: %w", path, err)
	}

	l := &Log{file: f, path: path, sync: opts.Sync, resources: opts.Resources}

	if st.Size() == 0 {
		hdrLen, err := writeHeader(f, headerInfo{Compressed: opts.Compress, CompressionLevel: opts.CompressionLevel})
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		l.dataOffset = hdrLen
		l.compressed = opts.Compress
		l.level = opts.CompressionLevel
	} else {
		info, valid, err := readHeader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if !valid {
			_ = f.Close()
			return nil, fmt.Errorf("runlog: %s has no valid header", path)
		}
		l.dataOffset = info.HeaderLen
		l.compressed = info.Compressed
		l.level = info.CompressionLevel
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("runlog: seek end %s: %w", path, err)
	}

	if l.compressed {
		level := zstd.EncoderLevelFromZstd(l.level)
		compressor, err := zstd.NewWriter(l.sink(), zstd.WithEncoderLevel(level))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("runlog: new zstd writer: %w", err)
		}
		l.compressor = compressor
		l.bufWriter = bufio.NewWriter(compressor)
		l.writer = l.bufWriter
	} else {
		l.bufWriter = bufio.NewWriter(l.sink())
		l.writer = l.bufWriter
	}

	if l.seq, err = nextSeq(path); err != nil {
		_ = f.Close()
		return nil, err
	}

	return l, nil
}

// nextSeq replays path once, purely to recover the next sequence number,
// without holding a Log's lock (the Log being constructed isn't usable
// yet).
func nextSeq(path string) (uint64, error) {
	var last uint64
	err := Replay(path, func(e Entry) error {
		if e.Seq > last {
			last = e.Seq
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if last == 0 {
		return 0, nil
	}
	return last, nil
}

// Append records that seed/path/hash was merged into the target this Log
// belongs to. Each entry's sequence number is monotonically increasing
// across the life of the log file (surviving Reset).
func (l *Log) Append(seed int64, path string, hash string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	entry := Entry{Seq: l.seq, Seed: seed, Path: path, Hash: hash, Timestamp: at.UnixNano()}
	if err := encodeEntry(l.writer, &entry); err != nil {
		return fmt.Errorf("runlog: append entry %d: %w", entry.Seq, err)
	}
	if err := l.bufWriter.Flush(); err != nil {
		return fmt.Errorf("runlog: flush: %w", err)
	}
	if l.compressed {
		if err := l.compressor.Flush(); err != nil {
			return fmt.Errorf("runlog: flush compressor: %w", err)
		}
	}
	if l.sync {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("runlog: fsync: %w", err)
		}
	}
	return nil
}

// Reset truncates the log back to an empty entry stream, keeping its
// header. MergeDriver calls this right after a successful crossBoundary,
// once the entries it recorded are subsumed by the freshly persisted
// FileDB and are no longer needed for recovery.
func (l *Log) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.compressed {
		if err := l.compressor.Close(); err != nil {
			return fmt.Errorf("runlog: close compressor: %w", err)
		}
	}
	if err := l.file.Truncate(l.dataOffset); err != nil {
		return fmt.Errorf("runlog: truncate: %w", err)
	}
	if _, err := l.file.Seek(l.dataOffset, io.SeekStart); err != nil {
		return fmt.Errorf("runlog: seek: %w", err)
	}
	if l.compressed {
		level := zstd.EncoderLevelFromZstd(l.level)
		compressor, err := zstd.NewWriter(l.sink(), zstd.WithEncoderLevel(level))
		if err != nil {
			return fmt.Errorf("runlog: new zstd writer: %w", err)
		}
		l.compressor = compressor
		l.bufWriter = bufio.NewWriter(compressor)
		l.writer = l.bufWriter
	} else {
		l.bufWriter = bufio.NewWriter(l.sink())
		l.writer = l.bufWriter
	}
	return nil
}

// sink returns the raw byte-stream destination entries are ultimately
// written to: l.file itself, or l.file throttled through Resources when
// one was configured, so the journal's write volume counts against the
// same budget as everything else drawing from that Controller.
func (l *Log) sink() io.Writer {
	if l.resources == nil {
		return l.file
	}
	return resource.NewRateLimitedWriter(l.file, l.resources, context.Background())
}

// Close flushes and releases the underlying file. It does not delete it;
// callers that want the journal gone after a clean run should Reset and
// leave an empty, headered file behind rather than unlink it, so a
// concurrent reader never observes a missing path.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.bufWriter.Flush(); err != nil {
		return fmt.Errorf("runlog: flush on close: %w", err)
	}
	if l.compressed {
		if err := l.compressor.Close(); err != nil {
			return fmt.Errorf("runlog: close compressor: %w", err)
		}
	}
	return l.file.Close()
}

// Path returns the file path backing l.
func (l *Log) Path() string {
	return l.path
}
