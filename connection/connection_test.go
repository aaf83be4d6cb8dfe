package connection

import "testing"

func TestNewValidatesPortRange(t *testing.T) {
	if _, err := New("ff15::1", 80, nil, ""); err == nil {
		t.Fatalf("expected error for out-of-range port")
	}
	c, err := New("ff15::1", 0, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Port() != DefaultPort {
		t.Fatalf("expected default port, got %d", c.Port())
	}
}

func TestNewRejectsEmptyGroup(t *testing.T) {
	if _, err := New("", 26000, nil, ""); err == nil {
		t.Fatalf("expected error for empty group")
	}
}

func TestNewRejectsTopicContainingDelimiter(t *testing.T) {
	if _, err := New("ff15::1", 26000, []string{"a,b"}, ""); err == nil {
		t.Fatalf("expected error for topic containing delimiter")
	}
}

func TestToMapFromMapRoundTrip(t *testing.T) {
	c, err := New("ff15::1", 26062, []string{"alpha", "beta"}, "ExampleMessage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := c.ToMap()
	roundTripped, err := FromMap(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Equal(roundTripped) {
		t.Fatalf("round trip mismatch: %#v vs %#v", c.ToMap(), roundTripped.ToMap())
	}
}

func TestStringFromStringRoundTrip(t *testing.T) {
	c, err := New("ff15::1", 26062, []string{"alpha", "beta"}, "ExampleMessage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := FromString(c.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Equal(parsed) {
		t.Fatalf("string round trip mismatch: %q vs %q", c.String(), parsed.String())
	}
}

func TestFromStringMinimal(t *testing.T) {
	c, err := FromString("ff15::1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Port() != DefaultPort || len(c.Topics()) != 0 || c.Message() != "" {
		t.Fatalf("unexpected parse result: %#v", c.ToMap())
	}
}

func TestEqualityIgnoresIdentity(t *testing.T) {
	a, _ := New("ff15::1", 26000, []string{"x"}, "M")
	b, _ := New("ff15::1", 26000, []string{"x"}, "M")
	if a == b {
		t.Fatalf("expected distinct pointers")
	}
	if !a.Equal(b) {
		t.Fatalf("expected equal by ToMap()")
	}
}
