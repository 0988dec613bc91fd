package api

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputFormatYAML, false},
		{"yaml", OutputFormatYAML, false},
		{"JSON", OutputFormatJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestPrinter(t *testing.T) {
	data := sample{Name: "lease", Count: 3}

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewPrinter(&buf, OutputFormatYAML).Print(data); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "name: lease\ncount: 3\n" {
			t.Errorf("yaml output = %q", buf.String())
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewPrinter(&buf, OutputFormatJSON).Print(data); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), `"count": 3`) {
			t.Errorf("json output = %q", buf.String())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := OutputTo(&bytes.Buffer{}, "xml", data); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}
