package cmd

import "testing"

func TestResolveConnectBaseURL(t *testing.T) {
	tests := []struct {
		target   string
		insecure bool
		want     string
		wantErr  bool
	}{
		{"127.0.0.1:1700", false, "http://127.0.0.1:1700", false},
		{"localhost:1700", false, "http://localhost:1700", false},
		{"[::1]:1700", false, "http://[::1]:1700", false},
		{"books.example.com:1700", false, "https://books.example.com:1700", false},
		{"books.example.com:1700", true, "http://books.example.com:1700", false},
		{"https://books.example.com/ignored/path", false, "https://books.example.com", false},
		{"http://books.example.com:1700", false, "", true},
		{"http://books.example.com:1700", true, "http://books.example.com:1700", false},
		{"ftp://books.example.com", false, "", true},
		{"http://", false, "", true},
	}
	for _, tt := range tests {
		got, err := resolveConnectBaseURL(tt.target, tt.insecure)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error, got %q", tt.target, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.target, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestIsLoopbackHost(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost": true,
		"LOCALHOST": true,
		"127.0.0.1": true,
		"127.8.0.1": true,
		"::1":       true,
		"10.0.0.1":  false,
		"":          false,
		"example":   false,
	} {
		if got := isLoopbackHost(host); got != want {
			t.Errorf("isLoopbackHost(%q) = %v, want %v", host, got, want)
		}
	}
}
