package validation

import (
	"testing"
)

func TestValidateFunctionID(t *testing.T) {
	tests := []struct {
		name    string
		fid     string
		wantErr bool
	}{
		{"simple", "hello-world", false},
		{"with namespace", "team/hello-world", false},
		{"with dots and underscores", "a.b_c-d", false},
		{"single char", "a", false},
		{"digits", "fn123", false},

		{"empty", "", true},
		{"two namespaces", "a/b/c", true},
		{"traversal segment", "a/../b", true},
		{"traversal alone", "..", true},
		{"leading traversal", "../etc/passwd", true},
		{"empty namespace segment", "a/", true},
		{"whitespace", "hello world", true},
		{"tab", "hello\tworld", true},
		{"newline control char", "hello\nworld", true},
		{"null byte", "hello\x00world", true},
		{"disallowed char", "hello@world", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFunctionID(tt.fid)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFunctionID(%q) error = %v, wantErr %v", tt.fid, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFunctionIDs(t *testing.T) {
	tests := []struct {
		name    string
		fids    []string
		wantErr bool
	}{
		{"all valid", []string{"a", "b/c", "d-e"}, false},
		{"one invalid", []string{"a", "bad name", "c"}, true},
		{"all invalid", []string{"a/b/c", ".."}, true},
		{"empty slice", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFunctionIDs(tt.fids)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFunctionIDs(%v) error = %v, wantErr %v", tt.fids, err, tt.wantErr)
			}
		})
	}
}

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantErr bool
	}{
		{"latest sentinel", "latest", false},
		{"basic semver", "1.2.3", false},
		{"semver with prerelease", "1.2.3-beta.1", false},
		{"semver with build", "1.2.3+build.5", false},
		{"empty", "", true},
		{"missing patch", "1.2", true},
		{"not semver", "v1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVersion(tt.version)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVersion(%q) error = %v, wantErr %v", tt.version, err, tt.wantErr)
			}
		})
	}
}
