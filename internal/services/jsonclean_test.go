// internal/services/jsonclean_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripControlChars(t *testing.T) {
	in := "a\u200bb\u200cc\ufeffd\x00e"
	assert.Equal(t, "abcde", stripControlChars(in))
}

func TestStripControlCharsKeepsWhitespace(t *testing.T) {
	in := "line1\nline2\tcol\r\n"
	assert.Equal(t, in, stripControlChars(in))
}

func TestFirstJSONObject(t *testing.T) {
	in := `prose before {"a": 1} and {"b": 2} after`
	assert.Equal(t, `{"a": 1}`, firstJSONObject(in))
}

func TestFirstJSONObjectUnterminated(t *testing.T) {
	assert.Equal(t, "", firstJSONObject(`start {"a": 1`))
	assert.Equal(t, "", firstJSONObject("no braces at all"))
}

func TestLargestJSONObjectPicksBiggest(t *testing.T) {
	in := `note {"a":1} then the real payload {"primary_emotions":[{"emotion":"страх","intensity":8}]} end`
	assert.Equal(t, `{"primary_emotions":[{"emotion":"страх","intensity":8}]}`, largestJSONObject(in))
}

func TestLargestJSONObjectRespectsStrings(t *testing.T) {
	// Braces inside string literals must not unbalance the scan.
	in := `{"text": "a } brace and a \" quote", "n": 1}`
	assert.Equal(t, in, largestJSONObject(in))
}

func TestLargestJSONObjectNested(t *testing.T) {
	in := `{"outer": {"inner": 1}}`
	assert.Equal(t, in, largestJSONObject(in))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "абвгд", truncateRunes("абвгд", 10))
	assert.Equal(t, "абв", truncateRunes("абвгд", 3))
	assert.Equal(t, "", truncateRunes("", 5))
}
