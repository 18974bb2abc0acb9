package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate_KeepsRuneBoundaries(t *testing.T) {
	short := "VM Started"
	assert.Equal(t, short, truncate(short, discordTitleLimit))

	// 200 two-byte runes; an odd byte limit lands mid-rune.
	accented := strings.Repeat("é", 200)
	out := truncate(accented, 255)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("é", 127), out)

	// Four-byte runes across the cut point.
	emoji := strings.Repeat("\U0001F4BE", 100)
	out = truncate(emoji, 10)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("\U0001F4BE", 2), out)
}
