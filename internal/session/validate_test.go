package session

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	t.Setenv(HomeEnv, "/tmp/ts")

	tests := []struct {
		input string
		ok    bool
	}{
		{"main", true},
		{"watch-2", true},
		{"0_backup", true},
		{strings.Repeat("a", 64), true},
		{"", false},
		{"-flag", false},
		{"_hidden", false},
		{"Work", false},
		{"two words", false},
		{"../escape", false},
		{"a.b", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err == nil) != tt.ok {
				t.Fatalf("ValidateName(%q) = %v, want ok=%v", tt.input, err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("error %v does not wrap ErrInvalidName", err)
			}
		})
	}
}

func TestValidateNameSocketPathLimit(t *testing.T) {
	t.Setenv(HomeEnv, "/tmp/"+strings.Repeat("d", 60))
	if err := ValidateName(strings.Repeat("s", 40)); !errors.Is(err, ErrInvalidName) {
		t.Errorf("long socket path accepted: %v", err)
	}
	if err := ValidateName("s"); err != nil {
		t.Errorf("short name rejected: %v", err)
	}
}
