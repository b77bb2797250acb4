package llm

import "testing"

func TestSanitizeJSONResponseStripsFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":                 `{"a":1}`,
		"Here you go:\n```json\n{\"a\":1}\n```":   `{"a":1}`,
		"```\n{\"a\":1}\n```":                     `{"a":1}`,
		`{"a":1}`:                                 `{"a":1}`,
		"Sure! {\"a\":1}":                         `{"a":1}`,
	}
	for in, want := range cases {
		if got := sanitizeJSONResponse(in); got != want {
			t.Errorf("sanitizeJSONResponse(%q) = %q, want %q", in, got, want)
		}
	}
}
