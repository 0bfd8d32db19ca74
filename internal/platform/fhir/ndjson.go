package fhir

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// maxLineSize bounds a single NDJSON line. GDC case documents with every
// sample expanded can reach several megabytes.
const maxLineSize = 64 * 1024 * 1024

// NDJSONWriter writes resources in NDJSON (Newline Delimited JSON) format.
// Each resource is serialised as a single compact JSON line followed by a
// newline character.
type NDJSONWriter struct {
	w *bufio.Writer
	n int
}

// NewNDJSONWriter creates a new NDJSONWriter that writes to w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{
		w: bufio.NewWriter(w),
	}
}

// WriteResource serialises resource as a single JSON line followed by a
// newline character. The resource can be any value that is marshallable
// by encoding/json (typically an Entity).
func (n *NDJSONWriter) WriteResource(resource interface{}) error {
	data, err := json.Marshal(resource)
	if err != nil {
		return err
	}
	return n.WriteRaw(data)
}

// WriteRaw writes an already encoded JSON document as one line.
func (n *NDJSONWriter) WriteRaw(data []byte) error {
	if bytes.IndexByte(data, '\n') >= 0 {
		return fmt.Errorf("ndjson: document contains a newline")
	}
	if _, err := n.w.Write(data); err != nil {
		return err
	}
	if err := n.w.WriteByte('\n'); err != nil {
		return err
	}
	n.n++
	return nil
}

// Count returns the number of lines written so far.
func (n *NDJSONWriter) Count() int { return n.n }

// Flush flushes any buffered data to the underlying writer.
func (n *NDJSONWriter) Flush() error {
	return n.w.Flush()
}

// ScanNDJSON calls fn for every non-blank line of r. The slice passed to fn
// is only valid for the duration of the call. Line numbers start at 1.
func ScanNDJSON(r io.Reader, fn func(lineNo int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("ndjson: line %d: %w", lineNo+1, err)
	}
	return nil
}
