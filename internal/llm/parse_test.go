package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractRecord(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   bool
		wantField string
		wantValue any
	}{
		{
			name:      "clean JSON",
			input:     `{"riskLevel":"high","initialScore":70}`,
			wantField: "riskLevel",
			wantValue: "high",
		},
		{
			name:      "JSON with whitespace",
			input:     "   {\"confidence\":80}   ",
			wantField: "confidence",
			wantValue: float64(80),
		},
		{
			name:      "markdown JSON block",
			input:     "```json\n{\"riskLevel\":\"low\"}\n```",
			wantField: "riskLevel",
			wantValue: "low",
		},
		{
			name:      "generic code block",
			input:     "```\n{\"riskLevel\":\"low\"}\n```",
			wantField: "riskLevel",
			wantValue: "low",
		},
		{
			name:      "JSON with preamble",
			input:     "Here is my assessment:\n{\"riskLevel\":\"medium\"}",
			wantField: "riskLevel",
			wantValue: "medium",
		},
		{
			name:      "JSON with postamble",
			input:     "{\"riskLevel\":\"medium\"}\nLet me know if you need more.",
			wantField: "riskLevel",
			wantValue: "medium",
		},
		{
			name:      "nested braces in string",
			input:     `{"summary":"uses {braces} freely","riskLevel":"low"}`,
			wantField: "riskLevel",
			wantValue: "low",
		},
		{
			name:      "escaped quotes in string",
			input:     `{"summary":"called it \"legit\"","riskLevel":"low"}`,
			wantField: "riskLevel",
			wantValue: "low",
		},
		{
			name:      "prose braces before record",
			input:     "Scores use {0-100}. {\"initialScore\":40}",
			wantField: "initialScore",
			wantValue: float64(40),
		},
		{
			name:      "multiple objects, first valid taken",
			input:     `{"first":1} {"second":2}`,
			wantField: "first",
			wantValue: float64(1),
		},
		{
			name:      "array field",
			input:     `{"riskFactors":["a","b"]}`,
			wantField: "riskFactors",
			wantValue: []any{"a", "b"},
		},
		{name: "empty string", input: "", wantErr: true},
		{name: "whitespace only", input: "  \t\n ", wantErr: true},
		{name: "no JSON", input: "I cannot assess this company.", wantErr: true},
		{name: "malformed JSON", input: "{riskLevel: high}", wantErr: true},
		{name: "incomplete JSON", input: `{"riskLevel":"high"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := ExtractRecord(tt.input)
			if tt.wantErr {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Fatalf("Expected *ParseError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			var fields map[string]any
			if err := json.Unmarshal([]byte(record), &fields); err != nil {
				t.Fatalf("Extracted record is not JSON: %v", err)
			}
			got, _ := json.Marshal(fields[tt.wantField])
			want, _ := json.Marshal(tt.wantValue)
			if string(got) != string(want) {
				t.Errorf("Expected %s=%s, got %s", tt.wantField, want, got)
			}
		})
	}
}

func TestDecodeRecord_SchemaMismatch(t *testing.T) {
	var out struct {
		InitialScore int `json:"initialScore"`
	}
	err := DecodeRecord(`{"initialScore":"seventy"}`, &out)

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *ParseError, got %v", err)
	}
	if perr.Err == nil {
		t.Error("Expected underlying unmarshal error")
	}
}

func TestExtractURLs(t *testing.T) {
	urls := ExtractURLs("See https://example.com/a, and (https://example.com/b). Again https://example.com/a")
	if len(urls) != 2 || urls[0] != "https://example.com/a" || urls[1] != "https://example.com/b" {
		t.Errorf("Unexpected URLs: %v", urls)
	}
}
