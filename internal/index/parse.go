package index

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformed marks an index resource that failed structural validation.
// The lead time it belongs to is treated as unavailable, never as a fatal
// run error.
var ErrMalformed = errors.New("index: malformed index resource")

// Entry describes one field inside a lead time's blob: which variable and
// ensemble member it holds and where its bytes live.
type Entry struct {
	Variable string
	Member   int // 0 is the control run
	Lead     int // hours
	Offset   int64
	Length   int64
}

// record mirrors one line of an ECMWF open-data index resource. Every
// value except the byte location arrives as a string.
type record struct {
	Param  string `json:"param"`
	Step   string `json:"step"`
	Number string `json:"number"`
	Type   string `json:"type"`
	Offset int64  `json:"_offset"`
	Length int64  `json:"_length"`
}

// Parse reads a line-delimited index resource, one JSON record per line,
// and streams it into entries without materializing any wrapping
// container. leadHours is the lead time the resource was fetched for and
// is used when a record carries no step of its own.
//
// A record missing its param or byte location makes the whole resource
// malformed, as does a resource with zero records: both indicate a
// truncated or corrupt upload rather than a legitimate gap.
func Parse(r io.Reader, leadHours int) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		entry, err := rec.toEntry(leadHours)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrMalformed)
	}

	return entries, nil
}

func (rec record) toEntry(leadHours int) (Entry, error) {
	if rec.Param == "" {
		return Entry{}, fmt.Errorf("%w: record has no param", ErrMalformed)
	}
	if rec.Offset < 0 || rec.Length <= 0 {
		return Entry{}, fmt.Errorf("%w: record %q has invalid byte range (_offset=%d, _length=%d)",
			ErrMalformed, rec.Param, rec.Offset, rec.Length)
	}

	lead := leadHours
	if rec.Step != "" {
		parsed, err := parseStep(rec.Step)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: record %q: %v", ErrMalformed, rec.Param, err)
		}
		lead = parsed
	}

	// The control forecast carries no member number.
	member := 0
	if rec.Number != "" {
		n, err := strconv.Atoi(rec.Number)
		if err != nil || n < 0 {
			return Entry{}, fmt.Errorf("%w: record %q has invalid member %q", ErrMalformed, rec.Param, rec.Number)
		}
		member = n
	}

	return Entry{
		Variable: rec.Param,
		Member:   member,
		Lead:     lead,
		Offset:   rec.Offset,
		Length:   rec.Length,
	}, nil
}

// parseStep parses a step value. Accumulated fields use a window such as
// "0-6"; the valid time is the window end.
func parseStep(s string) (int, error) {
	if i := strings.LastIndex(s, "-"); i > 0 {
		s = s[i+1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid step %q", s)
	}
	return n, nil
}
