package crypto

import (
	"encoding/json"
	"testing"
)

func TestCanonicalJSONKeyOrdering(t *testing.T) {
	in := map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": 1, "y": 2}}
	out, err := CanonicalJSON(in)
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	want := `{"a":2,"b":1,"c":{"y":2,"z":1}}`
	if string(out) != want {
		t.Fatalf("got %s want %s", out, want)
	}
}

func TestCanonicalJSONUnicode(t *testing.T) {
	in := map[string]any{"name": "Алекс 名前"}
	out, err := CanonicalJSON(in)
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if string(out) == "" {
		t.Fatal("expected non-empty output")
	}
}

func TestCanonicalJSONLargeIntegerNotCoerced(t *testing.T) {
	in := map[string]any{"reqId": json.Number("9007199254740993")} // 2^53 + 1
	out, err := CanonicalJSON(in)
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	want := `{"reqId":9007199254740993}`
	if string(out) != want {
		t.Fatalf("got %s want %s (float coercion would lose precision)", out, want)
	}
}

func TestCanonicalJSONExcludingSignature(t *testing.T) {
	in := map[string]any{"a": 1, "signature": "deadbeef"}
	out, err := CanonicalJSONExcluding(in, "signature")
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	want := `{"a":1}`
	if string(out) != want {
		t.Fatalf("got %s want %s", out, want)
	}
}
