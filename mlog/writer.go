// Package mlog implements the rotating, self-describing log file format
// from spec.md §4.G-§4.I: LogWriter, LogReader, and DirectoryReader.
package mlog

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mcl/internal/clog"
	"mcl/mclerr"
	"mcl/metrics"
)

const rulerLine = "#-----------------------------------------------------------------------------"

// renderHeader renders the once-per-file comment block (spec.md §4.G).
func renderHeader(typeName, revision string, created *time.Time) string {
	createdStr := "None"
	if created != nil {
		createdStr = fmt.Sprintf("%.5f", float64(created.UnixNano())/1e9)
	}
	nameStr := "None"
	if typeName != "" {
		nameStr = typeName
	}
	var b strings.Builder
	fmt.Fprintln(&b, rulerLine)
	fmt.Fprintln(&b, "# MCL_LOG")
	fmt.Fprintf(&b, "#     -- version     1.0\n")
	fmt.Fprintf(&b, "#     -- revision    %s\n", revision)
	fmt.Fprintf(&b, "#     -- created     %s\n", createdStr)
	fmt.Fprintln(&b, "#")
	fmt.Fprintln(&b, "# Each line of this file records a packet received over the network.")
	fmt.Fprintln(&b, "#")
	fmt.Fprintln(&b, "# The following data type was recorded in this file:")
	fmt.Fprintln(&b, "#")
	fmt.Fprintf(&b, "#      >>> %s\n", nameStr)
	fmt.Fprintln(&b, "#")
	fmt.Fprintln(&b, "#    <Time>     <Topic>     <Payload>")
	fmt.Fprintln(&b, rulerLine)
	return b.String()
}

// LogWriter writes rotating, self-describing log files (spec.md §4.G).
type LogWriter struct {
	prefix     string
	typeName   string
	revision   string
	timeOrigin *time.Time
	maxEntries int
	maxTime    time.Duration

	splitting bool
	split     int
	file      *os.File

	entriesInFile  int
	fileStartTime  time.Time
	wroteAnyRecord bool
}

// NewLogWriter constructs a LogWriter. prefix must not already end in
// ".tmp" or ".log". maxEntries <= 0 disables entry-count rotation;
// maxTime <= 0 disables time-based rotation. typeName/revision may be "".
func NewLogWriter(prefix, typeName, revision string, timeOrigin *time.Time, maxEntries int, maxTime time.Duration) (*LogWriter, error) {
	if strings.HasSuffix(prefix, ".tmp") || strings.HasSuffix(prefix, ".log") {
		return nil, mclerr.New(mclerr.ConfigError, "mlog.NewLogWriter",
			fmt.Errorf("prefix %q must not already carry a .tmp or .log extension", prefix))
	}
	dir := filepath.Dir(prefix)
	if _, err := os.Stat(dir); err != nil {
		return nil, mclerr.New(mclerr.ConfigError, "mlog.NewLogWriter", fmt.Errorf("parent directory %q does not exist", dir))
	}

	splitting := maxEntries > 0 || maxTime > 0
	w := &LogWriter{
		prefix:     prefix,
		typeName:   typeName,
		revision:   revision,
		timeOrigin: timeOrigin,
		maxEntries: maxEntries,
		maxTime:    maxTime,
		splitting:  splitting,
	}

	candidate := w.logPath(0)
	if _, err := os.Stat(candidate); err == nil {
		return nil, mclerr.New(mclerr.ConfigError, "mlog.NewLogWriter",
			fmt.Errorf("file %q already exists", candidate))
	}
	return w, nil
}

func (w *LogWriter) tmpPath(split int) string {
	if !w.splitting {
		return w.prefix + ".tmp"
	}
	return fmt.Sprintf("%s_%03d.tmp", w.prefix, split)
}

func (w *LogWriter) logPath(split int) string {
	if !w.splitting {
		return w.prefix + ".log"
	}
	return fmt.Sprintf("%s_%03d.log", w.prefix, split)
}

// Write appends one record, received at receivedAt, under topic, with
// payload encoded bytes, applying rotation policy first (spec.md §4.G).
func (w *LogWriter) Write(topic string, payload []byte, receivedAt time.Time) error {
	if w.timeOrigin == nil {
		origin := receivedAt
		w.timeOrigin = &origin
	}

	if w.file == nil {
		if err := w.openFile(receivedAt); err != nil {
			return err
		}
	} else {
		rotate := false
		if w.maxEntries > 0 && w.entriesInFile+1 > w.maxEntries {
			rotate = true
		}
		if w.maxTime > 0 && receivedAt.Sub(w.fileStartTime) >= w.maxTime {
			rotate = true
		}
		if rotate {
			if err := w.rotate(receivedAt); err != nil {
				return err
			}
		}
	}

	elapsed := receivedAt.Sub(*w.timeOrigin).Seconds()
	line := fmt.Sprintf("%12.5f    '%-8s'    %s\n", elapsed, topic, hex.EncodeToString(payload))
	if _, err := w.file.WriteString(line); err != nil {
		return mclerr.New(mclerr.IOErrorTransport, "mlog.LogWriter.Write", err)
	}
	w.entriesInFile++
	w.wroteAnyRecord = true
	metrics.LogRecordsWritten.Inc()
	return nil
}

func (w *LogWriter) openFile(receivedAt time.Time) error {
	path := w.tmpPath(w.split)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return mclerr.New(mclerr.IOErrorTransport, "mlog.LogWriter.openFile", err)
	}
	w.file = f
	w.fileStartTime = receivedAt
	w.entriesInFile = 0
	w.wroteAnyRecord = false

	header := renderHeader(w.typeName, w.revision, w.timeOrigin)
	if _, err := f.WriteString(header); err != nil {
		return mclerr.New(mclerr.IOErrorTransport, "mlog.LogWriter.openFile", err)
	}
	return nil
}

func (w *LogWriter) rotate(receivedAt time.Time) error {
	if err := w.closeCurrentFile(); err != nil {
		return err
	}
	w.split++
	metrics.LogRotations.Inc()
	return w.openFile(receivedAt)
}

func (w *LogWriter) closeCurrentFile() error {
	if w.file == nil {
		return nil
	}
	tmpPath := w.tmpPath(w.split)
	if err := w.file.Close(); err != nil {
		return mclerr.New(mclerr.IOErrorTransport, "mlog.LogWriter.closeCurrentFile", err)
	}
	w.file = nil

	if !w.wroteAnyRecord {
		return nil
	}
	logPath := w.logPath(w.split)
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = os.Rename(tmpPath, logPath); err == nil {
			return nil
		}
	}
	clog.Errorf("mlog: could not rename %q to %q after 2 attempts: %v", tmpPath, logPath, err)
	return nil
}

// Close finalizes the current file, renaming .tmp to .log. Close is
// idempotent (spec.md §4.G).
func (w *LogWriter) Close() error {
	return w.closeCurrentFile()
}
