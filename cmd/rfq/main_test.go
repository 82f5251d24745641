package main

import "testing"

func TestShorten(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"0f3a9c2e-7b1d-4e5f-9a8b-123456789abc", 8, "0f3a9c2e"},
		{"id-1", 8, "id-1"},
		{"", 12, ""},
		{"abcdefghijkl", 12, "abcdefghijkl"},
	}
	for _, tt := range tests {
		if got := shorten(tt.in, tt.n); got != tt.want {
			t.Errorf("shorten(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
