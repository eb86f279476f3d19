package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr error
	}{
		{"plain", "hello", "hello", nil},
		{"inner_whitespace_kept", "a  b", "a  b", nil},
		{"unicode", "秋の夕暮れ", "秋の夕暮れ", nil},
		{"empty", "", "", ErrEmptyCommand},
		{"whitespace_only", " \t\n", "", ErrEmptyCommand},
		{"too_large", strings.Repeat("x", MaxCommandSize+1), "", ErrCommandTooLarge},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EncodeCommand(tc.text)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && string(got) != tc.want {
				t.Errorf("EncodeCommand() = %q, want %q", got, tc.want)
			}
		})
	}
}
