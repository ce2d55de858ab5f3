package main

import (
	"bufio"
	"io"
)

// lineReader yields one line at a time from r, without its line terminator
// (other whitespace is kept), reporting false once the stream is exhausted.
type lineReader struct {
	scanner *bufio.Scanner
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next line and true, or ("", false) at end of stream.
func (l *lineReader) Next() (string, bool) {
	if !l.scanner.Scan() {
		return "", false
	}
	return l.scanner.Text(), true
}
