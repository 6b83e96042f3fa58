package models

import (
	"strings"
	"testing"
)

func TestNewJobKey(t *testing.T) {
	a := NewJobKey("https://cdn.example.com/a/master.m3u8", QualityHigh)
	b := NewJobKey("https://cdn.example.com/a/master.m3u8", QualityHigh)
	if a != b {
		t.Fatalf("equal inputs gave different keys: %s != %s", a, b)
	}

	tests := []struct {
		name    string
		source  string
		quality Quality
	}{
		{"other quality", "https://cdn.example.com/a/master.m3u8", QualityLow},
		{"other source", "https://cdn.example.com/b/master.m3u8", QualityHigh},
		{"boundary shift", "https://cdn.example.com/a/master.m3u8h", Quality("igh")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if k := NewJobKey(tt.source, tt.quality); k == a {
				t.Errorf("key collision with base key: %s", k)
			}
		})
	}

	if strings.Contains(string(a), "cdn.example.com") {
		t.Error("key reveals the source url")
	}
}

func TestQualityIsValid(t *testing.T) {
	for _, q := range []Quality{QualityLow, QualityMedium, QualityHigh} {
		if !q.IsValid() {
			t.Errorf("%q reported invalid", q)
		}
	}
	for _, q := range []Quality{"", "ultra", "HIGH"} {
		if q.IsValid() {
			t.Errorf("%q reported valid", q)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := 42.0
	j := &ExportJob{ID: "x", Progress: &p, Error: &JobError{Kind: ErrorKindInternal}}
	c := j.Clone()
	*c.Progress = 99
	c.Error.Message = "changed"
	if *j.Progress != 42 || j.Error.Message != "" {
		t.Fatal("clone shares memory with the original")
	}
}
