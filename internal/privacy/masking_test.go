package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskIdentity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"phone", "+1234567890", "+******7890"},
		{"short phone", "+123", "+***"},
		{"email style", "alice@example.org", "*************.org"},
		{"short identity", "bob", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskIdentity(tt.in))
		})
	}
}

func TestMaskChatKey(t *testing.T) {
	assert.Equal(t, "", MaskChatKey(""))
	assert.Equal(t, "***ce|*bb", MaskChatKey("alice|bbb"))
	assert.Equal(t, "***********7890", MaskChatKey("group:team:7890"))
}

func TestMaskChatKeyPreservesPairShape(t *testing.T) {
	masked := MaskChatKey("alice|bob")
	assert.Contains(t, masked, "|")
	assert.NotContains(t, masked, "alice")
	assert.NotContains(t, masked, "bob")
}

func TestMaskTransportID(t *testing.T) {
	assert.Equal(t, "", MaskTransportID(""))
	assert.Equal(t, "*******DEF12345", MaskTransportID("msg_ABCDEF12345"))
	assert.Equal(t, "****", MaskTransportID("m123"))
}
