package tfrecord

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bft-labs/birdrec/internal/domain"
)

// ErrCorrupt is returned for truncated entries or checksum mismatches.
// It matches domain.ErrDecode.
var ErrCorrupt = fmt.Errorf("%w: corrupt tfrecord", domain.ErrDecode)

// maxRecordLen guards against allocating from a garbage length header.
const maxRecordLen = 1 << 31

// Reader reads framed records sequentially.
type Reader struct {
	r     *bufio.Reader
	hdr   [12]byte
	count int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 256*1024)}
}

// Next returns the next payload. It returns io.EOF only at a clean record
// boundary; a partial entry yields ErrCorrupt.
func (r *Reader) Next() ([]byte, error) {
	n, err := io.ReadFull(r.r, r.hdr[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: record %d: short header", ErrCorrupt, r.count)
	}
	length := binary.LittleEndian.Uint64(r.hdr[:8])
	if binary.LittleEndian.Uint32(r.hdr[8:]) != maskedCRC(r.hdr[:8]) {
		return nil, fmt.Errorf("%w: record %d: length checksum mismatch", ErrCorrupt, r.count)
	}
	if length > maxRecordLen {
		return nil, fmt.Errorf("%w: record %d: length %d too large", ErrCorrupt, r.count, length)
	}
	buf := make([]byte, length+4)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("%w: record %d: short payload", ErrCorrupt, r.count)
	}
	payload := buf[:length]
	if binary.LittleEndian.Uint32(buf[length:]) != maskedCRC(payload) {
		return nil, fmt.Errorf("%w: record %d: payload checksum mismatch", ErrCorrupt, r.count)
	}
	r.count++
	return payload, nil
}

// FileReader is a Reader that owns its file.
type FileReader struct {
	*Reader
	f    *os.File
	path string
}

// Open opens path read-only.
func Open(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileReader{Reader: NewReader(f), f: f, path: path}, nil
}

// Path returns the file path.
func (fr *FileReader) Path() string { return fr.path }

// Close closes the file.
func (fr *FileReader) Close() error { return fr.f.Close() }

// Count reads every record in path and returns how many there are.
func Count(path string) (int, error) {
	r, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	n := 0
	for {
		if _, err := r.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		n++
	}
}
