package analytics

import (
	"regexp"
	"strings"

	"github.com/oshilog/chatview/internal/parser"
)

// piiKeywords are matched as lower-case substrings.
var piiKeywords = []string{
	// contact
	"@", "tel:", "http", "www",
	"phone", "email", "e-mail", "line id",
	"電話", "番号", "メール", "メアド",
	// address
	"address", "live in", "住所", "在住", "丁目",
	// real name
	"real name", "my name is", "本名", "名前は",
	// age and birthday
	"years old", "birthday", "born on",
	"年齢", "歳", "誕生日", "生年月日",
}

// Hyphenated phone numbers such as 090-1234-5678.
var phonePattern = regexp.MustCompile(`\d{2,4}-\d{2,4}-\d{3,4}`)

// ContainsPII reports whether text matches any PII indicator,
// ignoring case.
func ContainsPII(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range piiKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return phonePattern.MatchString(text)
}

// DetectPII reports whether any message content matches a PII
// indicator.
func DetectPII(msgs []parser.Message) bool {
	for _, m := range msgs {
		if ContainsPII(m.Content) {
			return true
		}
	}
	return false
}
