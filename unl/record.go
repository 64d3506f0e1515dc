package unl

import (
	"fmt"
	"strings"
)

// Delimiter separates fields in an unload data file. Every line, including the
// last field, is terminated by one delimiter.
const Delimiter = "|"

// Record is one decoded line of a data file.
type Record struct {
	Values []string
}

// IndexError is returned when a field position lies beyond the record's length.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("field index %d out of bounds for row with %d fields", e.Index, e.Len)
}

// Decode splits a line into a record. A single trailing delimiter is stripped
// first so the terminator does not produce an empty trailing field.
func Decode(line string) *Record {
	line = strings.TrimSuffix(line, Delimiter)
	return &Record{Values: strings.Split(line, Delimiter)}
}

// Encode joins the record's values and appends the trailing delimiter.
func Encode(r *Record) string {
	return strings.Join(r.Values, Delimiter) + Delimiter
}

// Len returns the number of fields in the record
func (r *Record) Len() int {
	return len(r.Values)
}

// Get returns the value at index
func (r *Record) Get(index int) (string, error) {
	if index < 0 || index >= len(r.Values) {
		return "", &IndexError{Index: index, Len: len(r.Values)}
	}
	return r.Values[index], nil
}

// Set overwrites the value at index
func (r *Record) Set(index int, value string) error {
	if index < 0 || index >= len(r.Values) {
		return &IndexError{Index: index, Len: len(r.Values)}
	}
	r.Values[index] = value
	return nil
}
