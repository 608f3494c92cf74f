package llm

import (
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "plain object",
			input:    `{"sql": "SELECT map FROM v_team_map_stats"}`,
			expected: `{"sql": "SELECT map FROM v_team_map_stats"}`,
		},
		{
			name:     "markdown fence",
			input:    "```json\n{\"sql\": \"SELECT 1\"}\n```",
			expected: `{"sql": "SELECT 1"}`,
		},
		{
			name:     "think tags and prose",
			input:    "<think>the user wants maps</think>Here you go: {\"sql\": \"SELECT map\"} hope that helps",
			expected: `{"sql": "SELECT map"}`,
		},
		{
			name:     "braces inside strings",
			input:    `{"sql": "SELECT '}' AS x", "note": "{"}`,
			expected: `{"sql": "SELECT '}' AS x", "note": "{"}`,
		},
		{
			name:     "array",
			input:    `answer: ["a", "b"]`,
			expected: `["a", "b"]`,
		},
		{
			name:    "no json",
			input:   "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			input:   `{"sql": "SELECT 1"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	type proposal struct {
		SQL string `json:"sql"`
	}

	got, err := ParseJSONResponse[proposal]("```json\n{\"sql\": \"SELECT win_rate FROM v_team_map_stats\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SQL != "SELECT win_rate FROM v_team_map_stats" {
		t.Errorf("SQL = %q", got.SQL)
	}

	if _, err := ParseJSONResponse[proposal](`{"sql": 42}`); err == nil {
		t.Errorf("expected unmarshal error for wrong type")
	}
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"trims whitespace", "  Cloud9 wins most on Haven.  \n", "Cloud9 wins most on Haven."},
		{"strips think block", "<think>\nlet me see\n</think>\nCloud9 is 58% on Haven.", "Cloud9 is 58% on Haven."},
		{"strips fence", "```markdown\n# Report\nBody\n```", "# Report\nBody"},
		{"empty after cleaning", "<think>only thoughts</think>   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanResponse(tt.input); got != tt.expected {
				t.Errorf("CleanResponse() = %q, want %q", got, tt.expected)
			}
		})
	}
}
