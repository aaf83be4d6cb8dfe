package message

import (
	"math"
	"testing"
	"time"

	"mcl/connection"
)

func testDescriptor(t *testing.T) *Descriptor {
	t.Helper()
	conn, err := connection.New("ff15::1", 26000, nil, "Example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	desc, err := NewDescriptor("Example", []string{"A", "B"}, conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return desc
}

func TestNewProducesNulledMandatoryFields(t *testing.T) {
	desc := testDescriptor(t)
	m, err := New(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, field := range []string{"A", "B"} {
		v, ok := m.Get(field)
		if !ok || v != nil {
			t.Fatalf("expected nil %q, got %v (present=%v)", field, v, ok)
		}
	}
	if m.Name() != "Example" {
		t.Fatalf("expected name Example, got %q", m.Name())
	}
}

func TestNewFromMapRejectsMissingMandatoryField(t *testing.T) {
	desc := testDescriptor(t)
	if _, err := NewFromMap(desc, map[string]interface{}{"A": 1}); err == nil {
		t.Fatalf("expected error for missing mandatory field B")
	}
}

func TestNewFromMapAcceptsCompleteFields(t *testing.T) {
	desc := testDescriptor(t)
	before := nowSeconds()
	m, err := NewFromMap(desc, map[string]interface{}{"A": 1, "B": 2})
	after := nowSeconds()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts := m.Timestamp(); ts < before || ts > after {
		t.Fatalf("timestamp %v not within [%v, %v]", ts, before, after)
	}
}

func TestNewFromPairs(t *testing.T) {
	desc := testDescriptor(t)
	m, err := NewFromPairs(desc, "A", 1, "B", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := m.Get("A")
	if v != 1 {
		t.Fatalf("expected A=1, got %v", v)
	}
}

func TestNewFromPairsRejectsOddArguments(t *testing.T) {
	desc := testDescriptor(t)
	if _, err := NewFromPairs(desc, "A", 1, "B"); err == nil {
		t.Fatalf("expected error for odd argument count")
	}
}

func TestSetNameAlwaysFails(t *testing.T) {
	desc := testDescriptor(t)
	m, err := NewFromMap(desc, map[string]interface{}{"A": 1, "B": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Set("name", "SomethingElse"); err == nil {
		t.Fatalf("expected error mutating name")
	}
	if m.Name() != "Example" {
		t.Fatalf("name must remain unchanged, got %q", m.Name())
	}
}

func TestUpdateRefreshesTimestampByDefault(t *testing.T) {
	desc := testDescriptor(t)
	m, err := NewFromMap(desc, map[string]interface{}{"A": 1, "B": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	original := m.Timestamp()
	time.Sleep(2 * time.Millisecond)
	if err := m.Update(map[string]interface{}{"A": 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Timestamp() <= original {
		t.Fatalf("expected timestamp to advance past %v, got %v", original, m.Timestamp())
	}
}

func TestUpdatePreservesExplicitTimestamp(t *testing.T) {
	desc := testDescriptor(t)
	m, err := NewFromMap(desc, map[string]interface{}{"A": 1, "B": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Update(map[string]interface{}{"A": 3, "timestamp": 0.0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Timestamp() != 0.0 {
		t.Fatalf("expected explicit timestamp 0, got %v", m.Timestamp())
	}
}

func TestUpdateRejectsNameMutation(t *testing.T) {
	desc := testDescriptor(t)
	m, err := NewFromMap(desc, map[string]interface{}{"A": 1, "B": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Update(map[string]interface{}{"name": "Other"}); err == nil {
		t.Fatalf("expected error mutating name via Update")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	desc := testDescriptor(t)
	m, err := NewFromMap(desc, map[string]interface{}{"A": 1.0, "B": 2.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := m.Encode(DefaultCodec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := NewFromBytes(desc, data, DefaultCodec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := decoded.Get("A")
	b, _ := decoded.Get("B")
	if a != 1.0 || b != 2.0 {
		t.Fatalf("round trip mismatch: A=%v B=%v", a, b)
	}
	if math.Abs(decoded.Timestamp()-m.Timestamp()) > 1e-9 {
		t.Fatalf("timestamp not preserved across round trip: %v vs %v", decoded.Timestamp(), m.Timestamp())
	}
}
