package mlog

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mcl/mclerr"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "alpha")

	w, err := NewLogWriter(prefix, "Example", "rev1", nil, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	base := time.Now()
	if err := w.Write("A", []byte("hello"), base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Write("B", []byte("world"), base.Add(time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(prefix + ".log"); err != nil {
		t.Fatalf("expected %s.log to exist: %v", prefix, err)
	}

	r, err := NewLogReader(prefix+".log", 0, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	typeName, hasHeader := r.Header()
	if !hasHeader || typeName != "Example" {
		t.Fatalf("expected header type Example, got %q (hasHeader=%v)", typeName, hasHeader)
	}

	rec1, err := r.Read()
	if err != nil || rec1.Topic != "A" || string(rec1.Payload) != "hello" {
		t.Fatalf("unexpected first record: %+v (err=%v)", rec1, err)
	}
	rec2, err := r.Read()
	if err != nil || rec2.Topic != "B" || string(rec2.Payload) != "world" {
		t.Fatalf("unexpected second record: %+v (err=%v)", rec2, err)
	}
	if rec2.ElapsedTime <= rec1.ElapsedTime {
		t.Fatalf("expected increasing elapsed time, got %v then %v", rec1.ElapsedTime, rec2.ElapsedTime)
	}
	if _, err := r.Read(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestRotationByEntriesSplitsFiles(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "beta")

	w, err := NewLogWriter(prefix, "Example", "", nil, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	base := time.Now()
	if err := w.Write("A", []byte("one"), base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Write("A", []byte("two"), base.Add(time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(prefix + "_000.log"); err != nil {
		t.Fatalf("expected split file 000: %v", err)
	}
	if _, err := os.Stat(prefix + "_001.log"); err != nil {
		t.Fatalf("expected split file 001: %v", err)
	}

	r, err := NewLogReader(prefix+"_000.log", 0, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	count := 0
	for {
		_, err := r.Read()
		if err != nil {
			if err != io.EOF {
				t.Fatalf("unexpected error: %v", err)
			}
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected to read 2 records spanning split files, got %d", count)
	}
}

func TestTimeFilteringSkipsAndTerminates(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "gamma")

	w, err := NewLogWriter(prefix, "", "", nil, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	base := time.Now()
	for i := 0; i < 5; i++ {
		if err := w.Write("A", []byte{byte(i)}, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := NewLogReader(prefix+".log", 1.5, 3.5, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	var got []byte
	for {
		rec, err := r.Read()
		if err != nil {
			if err != io.EOF {
				t.Fatalf("unexpected error: %v", err)
			}
			break
		}
		got = append(got, rec.Payload...)
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("expected payloads [2 3], got %v", got)
	}
}

func TestReadSurfacesFormatErrorOnMalformedLine(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "delta")

	w, err := NewLogWriter(prefix, "Example", "", nil, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	base := time.Now()
	if err := w.Write("A", []byte("ok"), base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Append a malformed record line after the one well-formed record the
	// writer produced.
	path := prefix + ".log"
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := []byte(string(contents) + "not a valid record line\n")
	if err := os.WriteFile(path, lines, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := NewLogReader(path, 0, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	rec, err := r.Read()
	if err != nil || string(rec.Payload) != "ok" {
		t.Fatalf("unexpected first record: %+v (err=%v)", rec, err)
	}

	if _, err := r.Read(); err == nil {
		t.Fatalf("expected a FormatError for the malformed line")
	} else if kind, ok := mclerr.Of(err); !ok || kind != mclerr.FormatError {
		t.Fatalf("expected mclerr.FormatError, got %v", err)
	}

	// Iteration does not auto-resume: the same error surfaces again.
	if _, err := r.Read(); err == nil {
		t.Fatalf("expected the sticky parse error to persist across reads")
	}
}

func TestDirectoryReaderMergesByElapsedTime(t *testing.T) {
	dir := t.TempDir()
	base := time.Now()

	wA, err := NewLogWriter(filepath.Join(dir, "typeA"), "TypeA", "", &base, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wA.Write("x", []byte("a0"), base)
	wA.Write("x", []byte("a2"), base.Add(2*time.Second))
	wA.Close()

	wB, err := NewLogWriter(filepath.Join(dir, "typeB"), "TypeB", "", &base, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wB.Write("y", []byte("b1"), base.Add(1*time.Second))
	wB.Write("y", []byte("b3"), base.Add(3*time.Second))
	wB.Close()

	dr, err := NewDirectoryReader(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer dr.Close()

	if !dr.IsDataPending() {
		t.Fatalf("expected data pending before reading any records")
	}

	var order []string
	for {
		rec, err := dr.Read()
		if err != nil {
			if err != io.EOF {
				t.Fatalf("unexpected error: %v", err)
			}
			break
		}
		order = append(order, string(rec.Payload))
	}
	if dr.IsDataPending() {
		t.Fatalf("expected no data pending after draining all records")
	}
	want := []string{"a0", "b1", "a2", "b3"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}
