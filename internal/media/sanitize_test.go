package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello world", "hello world"},
		{"strips tags", "hello <b>world</b>", "hello world"},
		{"strips script blocks", "<script>alert(1)</script>hi", "alert(1)hi"},
		{"escapes entities", "a < b & c", "a &lt; b &amp; c"},
		{"normalizes crlf", "line1\r\nline2\rline3", "line1\nline2\nline3"},
		{"collapses blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"trims whitespace", "  padded  ", "padded"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeText(tt.in))
		})
	}
}
