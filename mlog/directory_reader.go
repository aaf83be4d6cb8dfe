package mlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"mcl/mclerr"
)

var splitSuffix = regexp.MustCompile(`_\d{3}$`)

// source is one DirectoryReader input: its underlying LogReader, the
// current candidate record (nil once exhausted), and any sticky parse
// error surfaced by the reader.
type source struct {
	reader    *LogReader
	candidate *Record
	err       error
}

// DirectoryReader merges every log series found in a directory into a
// single time-ordered stream, picking the globally earliest elapsed_time
// across all sources on each read (spec.md §4.I).
type DirectoryReader struct {
	sources []*source
}

// NewDirectoryReader scans dir for "*.log" files, groups them by split
// prefix, opens one LogReader per group, and validates that every header's
// created field matches. Groups whose header declares no type are skipped
// unless ignoreRaw is false, in which case they are fatal.
func NewDirectoryReader(dir string, ignoreRaw bool) (*DirectoryReader, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, mclerr.New(mclerr.ConfigError, "mlog.NewDirectoryReader", err)
	}

	prefixes := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".log")
		base = splitSuffix.ReplaceAllString(base, "")
		prefixes[filepath.Join(dir, base)] = true
	}

	names := make([]string, 0, len(prefixes))
	for p := range prefixes {
		names = append(names, p)
	}
	sort.Strings(names)

	dr := &DirectoryReader{}
	var created string
	haveCreated := false

	for _, prefix := range names {
		path := prefix + ".log"
		if _, err := os.Stat(path); err != nil {
			path = firstCandidate(prefix)
		}
		reader, err := NewLogReader(path, 0, 0, false)
		if err != nil {
			return nil, err
		}
		typeName, hasHeader := reader.Header()
		if !hasHeader || typeName == "" {
			if ignoreRaw {
				reader.Close()
				continue
			}
			return nil, mclerr.New(mclerr.SchemaError, "mlog.NewDirectoryReader",
				fmt.Errorf("%q declares no message type and ignore_raw is false", prefix))
		}
		if reader.header != nil {
			if !haveCreated {
				created = reader.header.Created
				haveCreated = true
			} else if reader.header.Created != created {
				return nil, mclerr.New(mclerr.SchemaError, "mlog.NewDirectoryReader",
					fmt.Errorf("%q has created=%q, expected %q", prefix, reader.header.Created, created))
			}
		}

		src := &source{reader: reader}
		dr.sources = append(dr.sources, src)
	}

	for _, src := range dr.sources {
		src.fillCandidate()
	}
	return dr, nil
}

// fillCandidate pulls the next record from the underlying reader into the
// candidate slot, if it is currently empty and one is available. A
// non-EOF read error sticks on s.err and is not retried.
func (s *source) fillCandidate() {
	if s.err != nil || s.candidate != nil || !s.reader.IsDataPending() {
		return
	}
	rec, err := s.reader.Read()
	if err != nil {
		if err != io.EOF {
			s.err = err
		}
		return
	}
	s.candidate = &rec
}

func firstCandidate(prefix string) string {
	return prefix + "_000.log"
}

// IsDataPending reports whether any source still has a candidate record,
// or a pending read error, available.
func (dr *DirectoryReader) IsDataPending() bool {
	for _, src := range dr.sources {
		src.fillCandidate()
		if src.candidate != nil || src.err != nil {
			return true
		}
	}
	return false
}

// Read returns the globally earliest candidate record across every source,
// ties broken by source index, io.EOF at end-of-stream, or the first
// source's sticky parse error once one has occurred — iteration does not
// resume past it (spec.md §4.I, §7).
func (dr *DirectoryReader) Read() (Record, error) {
	for _, src := range dr.sources {
		src.fillCandidate()
		if src.err != nil {
			return Record{}, src.err
		}
	}

	bestIdx := -1
	for i, src := range dr.sources {
		if src.candidate == nil {
			continue
		}
		if bestIdx == -1 || src.candidate.ElapsedTime < dr.sources[bestIdx].candidate.ElapsedTime {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return Record{}, io.EOF
	}
	rec := *dr.sources[bestIdx].candidate
	dr.sources[bestIdx].candidate = nil
	return rec, nil
}

// Reset resets every source reader and refills all candidates
// (spec.md §4.I).
func (dr *DirectoryReader) Reset() error {
	for _, src := range dr.sources {
		if err := src.reader.Reset(); err != nil {
			return err
		}
		src.candidate = nil
		src.err = nil
		src.fillCandidate()
	}
	return nil
}

// Close releases every underlying reader's file handle.
func (dr *DirectoryReader) Close() error {
	var firstErr error
	for _, src := range dr.sources {
		if err := src.reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
