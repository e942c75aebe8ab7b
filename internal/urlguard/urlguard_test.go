package urlguard

import "testing"

func TestValidateBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOK    bool
		reasonHas string
	}{
		{"172.15 allowed", "https://172.15.255.255", true, ""},
		{"172.16.0.0 blocked", "https://172.16.0.0", false, ""},
		{"172.31.255.255 blocked", "https://172.31.255.255", false, ""},
		{"172.32.0.0 allowed", "https://172.32.0.0", true, ""},
		{"fe80::1 blocked", "https://[fe80::1]", false, "link-local"},
		{"ipv4-mapped loopback blocked", "https://[::ffff:127.0.0.1]", false, ""},
		{"ipv4-mapped public allowed", "https://[::ffff:8.8.8.8]", true, ""},
		{"link-local metadata blocked", "https://169.254.169.254/latest/meta-data/", false, "link-local"},
		{"public ip allowed", "https://8.8.8.8", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := Validate(tt.url)
			if ok != tt.wantOK {
				t.Fatalf("Validate(%q) ok = %v, want %v (reason=%q)", tt.url, ok, tt.wantOK, reason)
			}
			if tt.reasonHas != "" && !contains(reason, tt.reasonHas) {
				t.Errorf("Validate(%q) reason = %q, want it to contain %q", tt.url, reason, tt.reasonHas)
			}
		})
	}
}

func TestValidateRejectionOrder(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		wantOK bool
	}{
		{"unparseable", "http://%", false},
		{"ftp scheme", "ftp://example.com/file", false},
		{"http non-local host", "http://example.com", false},
		{"http localhost allowed", "http://localhost:8080", true},
		{"http 127.0.0.1 allowed", "http://127.0.0.1", true},
		{"https non-local allowed", "https://example.com", true},
		{"missing host", "https:///path", false},
		{"decimal IP encoding blocked", "https://2130706433", false}, // 127.0.0.1
		{"hex IP encoding blocked", "https://0x7f000001", false},
		{"octal IP encoding blocked", "https://017700000001", false}, // 127.0.0.1 octal
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := Validate(tt.url)
			if ok != tt.wantOK {
				t.Errorf("Validate(%q) ok = %v, want %v (reason=%q)", tt.url, ok, tt.wantOK, reason)
			}
		})
	}
}

func TestValidateReferentiallyTransparent(t *testing.T) {
	url := "https://169.254.169.254/latest/meta-data/"
	ok1, r1 := Validate(url)
	ok2, r2 := Validate(url)
	if ok1 != ok2 || r1 != r2 {
		t.Errorf("Validate is not referentially transparent: (%v,%q) != (%v,%q)", ok1, r1, ok2, r2)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return substr == ""
}
