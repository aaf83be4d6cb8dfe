package mlog

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"mcl/mclerr"
)

// header holds the parsed contents of a log file's comment block
// (spec.md §4.H).
type header struct {
	Version  string
	Revision string
	Created  string
	TypeName string // "" means the file declares no type ("None")
}

// Record is a single parsed log entry: elapsed time since the reader's
// (or writer's) time origin, topic, raw decoded payload bytes, and the
// message type name declared by the series' header (empty for a raw,
// untyped series).
type Record struct {
	ElapsedTime float64
	Topic       string
	Payload     []byte
	TypeName    string
}

// LogReader parses and iterates a single log file (or split series) in
// time order, always holding a look-ahead record (spec.md §4.H).
type LogReader struct {
	prefix    string // path without "_NNN.log" suffix, in split mode
	splitting bool
	split     int

	file    *os.File
	scanner *bufio.Scanner
	header  *header

	seriesTypeName string

	minTime float64
	maxTime float64
	hasMax  bool

	lookAhead *Record
	done      bool
	err       error // sticky parse error; once set, every Read returns it
}

// NewLogReader opens a log file or, in split mode, the first file of a
// split series (prefix + "_000.log"). minTime defaults to 0; pass
// hasMaxTime=false to disable the upper bound.
func NewLogReader(path string, minTime, maxTime float64, hasMaxTime bool) (*LogReader, error) {
	r := &LogReader{minTime: minTime, maxTime: maxTime, hasMax: hasMaxTime}

	if strings.HasSuffix(path, ".log") && isSplitCandidate(path) {
		trimmed := strings.TrimSuffix(path, ".log")
		r.prefix = trimmed[:len(trimmed)-4] // drop the trailing "_NNN"
		r.splitting = true
	} else if strings.HasSuffix(path, ".log") {
		r.prefix = strings.TrimSuffix(path, ".log")
		r.splitting = false
	} else {
		r.prefix = path
		r.splitting = true
	}

	if err := r.openSplit(0); err != nil {
		return nil, err
	}
	r.advance()
	return r, nil
}

func isSplitCandidate(path string) bool {
	trimmed := strings.TrimSuffix(path, ".log")
	if len(trimmed) < 4 {
		return false
	}
	suffix := trimmed[len(trimmed)-4:]
	return suffix[0] == '_' && isDigits(suffix[1:])
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func (r *LogReader) splitPath(split int) string {
	if !r.splitting {
		return r.prefix + ".log"
	}
	return fmt.Sprintf("%s_%03d.log", r.prefix, split)
}

func (r *LogReader) openSplit(split int) error {
	path := r.splitPath(split)
	f, err := os.Open(path)
	if err != nil {
		if split == 0 {
			return mclerr.New(mclerr.ConfigError, "mlog.NewLogReader", fmt.Errorf("file %q does not exist", path))
		}
		return err // not-found on a later split is a normal end-of-series signal
	}

	r.file = f
	r.split = split
	reader := bufio.NewReader(f)
	first, err := reader.Peek(1)
	if err == nil && len(first) > 0 && first[0] == '#' {
		h, err := parseHeader(reader)
		if err != nil {
			f.Close()
			return err
		}
		r.header = h
		if h.TypeName != "" {
			r.seriesTypeName = h.TypeName
		}
	} else {
		r.header = nil
	}
	r.scanner = bufio.NewScanner(reader)
	r.scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return nil
}

// parseHeader consumes the comment block from reader, validating its
// exact shape (spec.md §4.H).
func parseHeader(reader *bufio.Reader) (*header, error) {
	const headerLines = 14
	lines := make([]string, 0, headerLines)
	for i := 0; i < headerLines; i++ {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return nil, mclerr.New(mclerr.FormatError, "mlog.parseHeader", fmt.Errorf("truncated header"))
		}
		lines = append(lines, strings.TrimRight(line, "\n"))
	}

	if lines[0] != rulerLine || lines[13] != rulerLine {
		return nil, mclerr.New(mclerr.FormatError, "mlog.parseHeader", fmt.Errorf("missing ruler lines"))
	}
	if lines[1] != "# MCL_LOG" {
		return nil, mclerr.New(mclerr.FormatError, "mlog.parseHeader", fmt.Errorf("missing MCL_LOG marker"))
	}
	version, ok1 := fieldValue(lines[2], "version")
	revision, ok2 := fieldValue(lines[3], "revision")
	created, ok3 := fieldValue(lines[4], "created")
	if !ok1 || !ok2 || !ok3 {
		return nil, mclerr.New(mclerr.FormatError, "mlog.parseHeader", fmt.Errorf("malformed version/revision/created lines"))
	}
	typeLine := strings.TrimSpace(lines[10])
	if !strings.HasPrefix(typeLine, ">>>") {
		return nil, mclerr.New(mclerr.FormatError, "mlog.parseHeader", fmt.Errorf("missing type declaration line"))
	}
	typeName := strings.TrimSpace(strings.TrimPrefix(typeLine, ">>>"))
	if typeName == "None" {
		typeName = ""
	}
	return &header{Version: version, Revision: revision, Created: created, TypeName: typeName}, nil
}

func fieldValue(line, name string) (string, bool) {
	prefix := fmt.Sprintf("#     -- %s", name)
	if !strings.HasPrefix(strings.TrimRight(line, " "), strings.TrimRight(prefix, " ")) {
		return "", false
	}
	idx := strings.Index(line, name)
	rest := strings.TrimSpace(line[idx+len(name):])
	return rest, true
}

// Header returns the type name declared by the header of the file currently
// open in the series, and whether that file has a header at all. Headers of
// earlier split files are not consulted.
func (r *LogReader) Header() (typeName string, hasHeader bool) {
	if r.header == nil {
		return "", false
	}
	return r.header.TypeName, true
}

// IsDataPending reports whether a look-ahead record, or a pending parse
// error, is available.
func (r *LogReader) IsDataPending() bool { return r.lookAhead != nil || r.err != nil }

// Read returns the current look-ahead record and advances to the next
// one. A record line that fails to parse surfaces once as a FormatError;
// every subsequent Read call on this reader returns the same error and
// iteration does not resume (spec.md §4.H, §7).
func (r *LogReader) Read() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	if r.lookAhead == nil {
		return Record{}, io.EOF
	}
	rec := *r.lookAhead
	r.advance()
	return rec, nil
}

// advance parses the next qualifying record into the look-ahead slot,
// spanning split files and applying time filtering.
func (r *LogReader) advance() {
	if r.done {
		r.lookAhead = nil
		return
	}
	for {
		if r.scanner == nil || !r.scanner.Scan() {
			if r.file != nil {
				r.file.Close()
			}
			if !r.splitting {
				r.done = true
				r.lookAhead = nil
				return
			}
			if err := r.openSplit(r.split + 1); err != nil {
				r.done = true
				r.lookAhead = nil
				return
			}
			continue
		}
		line := r.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, ok := parseLine(line)
		if !ok {
			r.err = mclerr.New(mclerr.FormatError, "mlog.LogReader.Read",
				fmt.Errorf("malformed record line: %q", line))
			r.done = true
			r.lookAhead = nil
			return
		}
		if rec.ElapsedTime < r.minTime {
			continue
		}
		if r.hasMax && rec.ElapsedTime > r.maxTime {
			r.done = true
			r.lookAhead = nil
			return
		}
		rec.TypeName = r.seriesTypeName
		r.lookAhead = &rec
		return
	}
}

func parseLine(line string) (Record, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Record{}, false
	}
	elapsed, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Record{}, false
	}
	topic := strings.Trim(fields[1], "'")
	payload, err := hex.DecodeString(fields[2])
	if err != nil {
		return Record{}, false
	}
	return Record{ElapsedTime: elapsed, Topic: topic, Payload: payload}, true
}

// Reset seeks back to the start of the first split file and re-primes the
// look-ahead (spec.md §4.H).
func (r *LogReader) Reset() error {
	if r.file != nil {
		r.file.Close()
	}
	r.done = false
	r.err = nil
	r.lookAhead = nil
	if err := r.openSplit(0); err != nil {
		return err
	}
	r.advance()
	return nil
}

// Close releases the reader's open file handle.
func (r *LogReader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
