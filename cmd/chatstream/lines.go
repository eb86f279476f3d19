package main

import (
	"bufio"
	"io"
)

// readLine returns the next line of r without its line ending, truncated
// to limit+1 bytes so callers can tell it was too long. The rest of a long
// line is skipped. It returns io.EOF once r is exhausted.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	read := false
	for {
		chunk, more, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && read {
				return line, nil
			}
			return nil, err
		}
		read = true
		if room := limit + 1 - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if !more {
			return line, nil
		}
	}
}
