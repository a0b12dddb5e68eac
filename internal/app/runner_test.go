package app

import "testing"

func TestShortDigest(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"full digest", "0123456789abcdef0123456789abcdef", "0123456789ab"},
		{"exactly twelve", "0123456789ab", "0123456789ab"},
		{"truncated entry", "abc", "abc"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shortDigest(tt.input); got != tt.expected {
				t.Errorf("shortDigest(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
