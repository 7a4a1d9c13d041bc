package runlog

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

var (
	logMagic          = [4]byte{'H', '5', 'R', 'L'}
	logHeaderVersion  = uint16(1)
	logHeaderFixedLen = 16 // excludes nothing; entries start right after this
)

type headerInfo struct {
	Compressed       bool
	CompressionLevel int
	HeaderLen        int64
}

func writeHeader(w io.Writer, info headerInfo) (int64, error) {
	var flags uint16
	if info.Compressed {
		flags |= 1
	}
	level := uint8(0)
	if info.Compressed {
		level = uint8(info.CompressionLevel)
	}

	buf := make([]byte, 0, logHeaderFixedLen)
	buf = append(buf, logMagic[:]...)
	var fixed [12]byte
	binary.LittleEndian.PutUint16(fixed[0:2], logHeaderVersion)
	binary.LittleEndian.PutUint16(fixed[2:4], flags)
	fixed[4] = level
	// fixed[5:12] reserved
	buf = append(buf, fixed[:]...)

	if _, err := w.Write(buf); err != nil {
		return 0, fmt.Errorf("runlog: write header: %w", err)
	}
	return int64(len(buf)), nil
}

func readHeader(f *os.File) (headerInfo, bool, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return headerInfo{}, false, fmt.Errorf("runlog: seek: %w", err)
	}

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		if err == io.EOF {
			return headerInfo{}, false, nil
		}
		return headerInfo{}, false, fmt.Errorf("runlog: read header magic: %w", err)
	}
	if magic != logMagic {
		return headerInfo{}, false, fmt.Errorf("runlog: unsupported format: invalid header magic")
	}

	fixed := make([]byte, logHeaderFixedLen-4)
	if _, err := io.ReadFull(f, fixed); err != nil {
		return headerInfo{}, true, fmt.Errorf("runlog: read header: %w", err)
	}

	version := binary.LittleEndian.Uint16(fixed[0:2])
	if version != logHeaderVersion {
		return headerInfo{}, true, fmt.Errorf("runlog: unsupported header version: %d", version)
	}
	flags := binary.LittleEndian.Uint16(fixed[2:4])
	compressed := (flags & 1) != 0
	level := int(fixed[4])

	return headerInfo{
		Compressed:       compressed,
		CompressionLevel: level,
		HeaderLen:        int64(logHeaderFixedLen),
	}, true, nil
}
