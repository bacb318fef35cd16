package monitoring

import (
	"testing"
	"time"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("no-op logger should not have triggered the previous callback")
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}

func TestKV(t *testing.T) {
	tests := []struct {
		name  string
		pairs []interface{}
		want  string
	}{
		{"empty", nil, ""},
		{"ints and strings", []interface{}{"points", 1200, "stage", "normals"}, "points=1200 stage=normals"},
		{"duration rounded", []interface{}{"took", 1234567 * time.Microsecond}, "took=1.235s"},
		{"float", []interface{}{"err", 0.000123456789}, "err=0.000123457"},
		{"dangling key", []interface{}{"a", 1, "b"}, "a=1 b=?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KV(tt.pairs...); got != tt.want {
				t.Errorf("KV() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecorder(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var rec Recorder
	SetLogger(rec.Logf)
	Logf("[Pipeline] stage=%s", "normals")
	Logf("[LoD] target=%d", 100)
	Logf("[Pipeline] stage=%s", "lod")

	if got := len(rec.Lines()); got != 3 {
		t.Fatalf("recorded %d lines, want 3", got)
	}
	matched := rec.Matching("[Pipeline]")
	if len(matched) != 2 || matched[1] != "[Pipeline] stage=lod" {
		t.Errorf("Matching = %v", matched)
	}
}
