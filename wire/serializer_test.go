package wire

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	PutInt(&buf, 128)
	PutString(&buf, "hello")
	id := uuid.New()
	PutUUID(&buf, id)
	PutBool(&buf, true)

	r := NewReader(buf.Bytes())
	n, err := r.Int()
	if err != nil || n != 128 {
		t.Fatalf("Int round trip: got %d, err %v", n, err)
	}
	s, err := r.String()
	if err != nil || s != "hello" {
		t.Fatalf("String round trip: got %q, err %v", s, err)
	}
	gotID, err := r.UUID()
	if err != nil || gotID != id {
		t.Fatalf("UUID round trip: got %v, err %v", gotID, err)
	}
	b, err := r.Bool()
	if err != nil || !b {
		t.Fatalf("Bool round trip: got %v, err %v", b, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected no remaining bytes, got %d", r.Remaining())
	}
}

func TestStringMapRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	m := map[string]string{"a": "1", "b": "true"}
	PutStringMap(&buf, m, []string{"a", "b"})

	r := NewReader(buf.Bytes())
	got, err := r.StringMap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got["a"] != "1" || got["b"] != "true" {
		t.Fatalf("map round trip mismatch: %v", got)
	}
}

func TestArrayRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewArray(&buf)
	PutInt(w.Elem(), 1234567890)
	PutInt(w.Elem(), 1)
	w.Close()

	r := NewReader(buf.Bytes())
	n, err := r.ArrayLen()
	if err != nil || n != 2 {
		t.Fatalf("ArrayLen: got %d, err %v", n, err)
	}
	a, _ := r.Int()
	b, _ := r.Int()
	if a != 1234567890 || b != 1 {
		t.Fatalf("array elements mismatch: %d, %d", a, b)
	}
}
