package directive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Load scans r line by line and returns every well-formed entry.
//
// Malformed lines do not stop the scan; each one is reported as a *LineError
// in the second return value. Blank lines and lines starting with '#' are
// skipped. A read error is appended last.
func Load(r io.Reader, loc *time.Location) ([]Entry, []error) {
	var (
		entries []Entry
		errs    []error
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		e, err := ParseIn(text, loc)
		if err != nil {
			errs = append(errs, &LineError{Line: n, Text: text, Err: err})
			continue
		}
		e.Line = n
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, fmt.Errorf("read directives: %w", err))
	}
	return entries, errs
}

// LoadFile opens path and calls Load. The error is non-nil only when the file
// cannot be opened.
func LoadFile(path string, loc *time.Location) ([]Entry, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open directives: %w", err)
	}
	defer f.Close()
	entries, errs := Load(f, loc)
	return entries, errs, nil
}
