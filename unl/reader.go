package unl

import (
	"bufio"
	"io"
	"strings"
)

// Reader streams records from a data file in input order.
type Reader struct {
	r         *bufio.Reader
	lines     int64
	bytesRead int64
}

// NewReader wraps r for line-by-line decoding
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next record, or io.EOF once the input is exhausted.
// A final line without a newline is still returned.
func (rd *Reader) Next() (*Record, error) {
	line, err := rd.r.ReadString('\n')
	rd.bytesRead += int64(len(line))
	if err != nil && !(err == io.EOF && line != "") {
		return nil, err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	rd.lines++
	return Decode(line), nil
}

// Lines returns the number of records read so far
func (rd *Reader) Lines() int64 {
	return rd.lines
}

// BytesRead returns the number of raw bytes consumed
func (rd *Reader) BytesRead() int64 {
	return rd.bytesRead
}

// Writer encodes records, one per line.
type Writer struct {
	w     *bufio.Writer
	lines int64
}

// NewWriter wraps w with a buffered record encoder
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64*1024)}
}

// Write encodes r and terminates the line with a newline.
func (wr *Writer) Write(r *Record) error {
	if _, err := wr.w.WriteString(Encode(r)); err != nil {
		return err
	}
	if err := wr.w.WriteByte('\n'); err != nil {
		return err
	}
	wr.lines++
	return nil
}

// Lines returns the number of records written so far
func (wr *Writer) Lines() int64 {
	return wr.lines
}

// Flush writes any buffered data to the underlying writer
func (wr *Writer) Flush() error {
	return wr.w.Flush()
}

// CountLines counts the records in r without decoding them.
func CountLines(r io.Reader) (int64, error) {
	rd := NewReader(r)
	for {
		line, err := rd.r.ReadString('\n')
		if line != "" {
			rd.lines++
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return rd.lines, err
		}
	}
	return rd.lines, nil
}
