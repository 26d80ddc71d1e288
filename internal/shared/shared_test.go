package shared

import (
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == b {
		t.Error("expected unique IDs")
	}

	if len(strings.Split(a, "-")) != 5 {
		t.Errorf("expected uuid v4 shape, got %s", a)
	}
}

func TestMarshalJSON(t *testing.T) {
	data := map[string]any{"name": "guest", "uses": 1}

	compact, err := MarshalJSON(data, false)
	if err != nil {
		t.Fatalf("compact marshal failed: %v", err)
	}
	if strings.Contains(string(compact), "\n") {
		t.Error("compact output should not contain newlines")
	}

	pretty, err := MarshalJSON(data, true)
	if err != nil {
		t.Fatalf("pretty marshal failed: %v", err)
	}
	if !strings.Contains(string(pretty), "\n") {
		t.Error("pretty output should be indented")
	}

	if _, err := MarshalJSON(make(chan int), false); err == nil {
		t.Error("expected error for unmarshalable value")
	}
}
