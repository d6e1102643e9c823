package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oshilog/chatview/internal/parser"
)

func TestContainsPII(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Contact me at USER@EXAMPLE.com", true},
		{"hello", false},
		{"", false},
		{"TEL:0312345678", true},
		{"see HTTPS://example.com", true},
		{"WWW.example.jp", true},
		{"My Phone is broken", true},
		{"call 090-1234-5678 tonight", true},
		{"住所を教えて", true},
		{"本名は秘密", true},
		{"来月で20歳になる", true},
		{"ライブ楽しかった", false},
		{"see you tomorrow", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsPII(tt.text))
		})
	}
}

func TestDetectPII(t *testing.T) {
	assert.True(t, DetectPII([]parser.Message{
		{Content: "hello"},
		{Content: "Contact me at USER@EXAMPLE.com"},
	}))
	assert.False(t, DetectPII([]parser.Message{{Content: "hello"}}))
	assert.False(t, DetectPII(nil))
}
