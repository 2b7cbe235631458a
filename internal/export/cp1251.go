package export

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// cp1251Extra lists the non-letter characters kept when encoding. Every
// other character outside ASCII and the basic Cyrillic block becomes '?'.
var cp1251Extra = map[rune]bool{
	'Ё': true,
	'ё': true,
	'№': true,
	'«': true,
	'»': true,
	'–': true,
	'—': true,
	'…': true,
	'•': true,
	'°': true,
}

// EncodeCP1251 converts UTF-8 text to windows-1251 bytes for Excel.
func EncodeCP1251(s string) []byte {
	out := make([]byte, 0, len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		out = append(out, encodeRune(r))
	}
	return out
}

func encodeRune(r rune) byte {
	if r <= 0x7f && r != utf8.RuneError {
		return byte(r)
	}
	if (r >= 0x0410 && r <= 0x044f) || cp1251Extra[r] {
		if b, ok := charmap.Windows1251.EncodeRune(r); ok {
			return b
		}
	}
	return '?'
}
