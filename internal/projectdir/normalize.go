package projectdir

import "strings"

// emojiRanges covers the blocks users decorate project names with. Variation
// selectors and the joiner are included so composed emoji vanish completely.
var emojiRanges = [][2]rune{
	{0x1F300, 0x1F5FF},
	{0x1F600, 0x1F64F},
	{0x1F680, 0x1F6FF},
	{0x1F900, 0x1F9FF},
	{0x1FA70, 0x1FAFF},
	{0x2600, 0x26FF},
	{0x2700, 0x27BF},
	{0x1F1E6, 0x1F1FF},
	{0xFE00, 0xFE0F},
	{0x200D, 0x200D},
}

func isEmoji(r rune) bool {
	for _, rng := range emojiRanges {
		if r >= rng[0] && r <= rng[1] {
			return true
		}
	}
	return false
}

// StripEmoji removes emoji and joiners, leaving the text portion of a name.
func StripEmoji(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isEmoji(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeName lowercases, strips emoji and collapses interior whitespace.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(StripEmoji(s))), " ")
}
