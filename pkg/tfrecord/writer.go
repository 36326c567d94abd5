package tfrecord

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// Writer appends framed records to an underlying stream.
type Writer struct {
	w   *bufio.Writer
	hdr [12]byte
	n   int
}

// NewWriter returns a Writer buffering into w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 256*1024)}
}

// Write frames and appends one payload.
func (w *Writer) Write(payload []byte) error {
	binary.LittleEndian.PutUint64(w.hdr[:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(w.hdr[8:], maskedCRC(w.hdr[:8]))
	if _, err := w.w.Write(w.hdr[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(payload))
	if _, err := w.w.Write(footer[:]); err != nil {
		return err
	}
	w.n++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int { return w.n }

// Flush writes buffered data to the underlying stream.
func (w *Writer) Flush() error { return w.w.Flush() }

// FileWriter is a Writer that owns its file.
type FileWriter struct {
	*Writer
	f    *os.File
	path string
}

// Create truncates or creates path and returns a writer for it.
func Create(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileWriter{Writer: NewWriter(f), f: f, path: path}, nil
}

// Path returns the file path.
func (fw *FileWriter) Path() string { return fw.path }

// Close flushes buffered records and closes the file.
func (fw *FileWriter) Close() error {
	ferr := fw.Flush()
	cerr := fw.f.Close()
	return errors.Join(ferr, cerr)
}
