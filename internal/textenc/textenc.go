// Package textenc normalizes uploaded text to UTF-8 before tokenizing.
//
// Uploads labeled "CSV" are routinely UTF-16 exports from spreadsheet tools
// or Windows-125x extracts from legacy systems. Rather than pushing mojibake
// through the parsers, this package detects the common cases from the bytes
// themselves and decodes to clean UTF-8.
//
// Detection is heuristic and intentionally conservative: valid UTF-8 always
// passes through untouched.
package textenc

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode converts raw upload bytes to a UTF-8 string.
//
// The second return value names the source encoding when a conversion was
// applied ("utf-16le", "utf-16be", "windows-1252"); it is empty for input
// that was already UTF-8 (a stripped UTF-8 BOM does not count as a
// conversion).
//
// Behavior:
//   - BOMs decide UTF-16 variants outright.
//   - BOM-less UTF-16 is recognized by the NUL-byte interleave typical of
//     ASCII-heavy text.
//   - Anything that is not valid UTF-8 falls back to Windows-1252, which is
//     a superset of Latin-1 and decodes every byte sequence.
func Decode(b []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(b, bomUTF8):
		return string(b[len(bomUTF8):]), "", nil
	case bytes.HasPrefix(b, bomUTF16LE):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), b, "utf-16le")
	case bytes.HasPrefix(b, bomUTF16BE):
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), b, "utf-16be")
	}

	if endian, ok := sniffBareUTF16(b); ok {
		if endian == unicode.LittleEndian {
			return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), b, "utf-16le")
		}
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), b, "utf-16be")
	}

	if utf8.Valid(b) {
		return string(b), "", nil
	}

	return decodeWith(charmap.Windows1252, b, "windows-1252")
}

func decodeWith(enc encoding.Encoding, b []byte, label string) (string, string, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), b)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", label, err)
	}
	return string(out), label, nil
}

// sniffBareUTF16 looks for the alternating-NUL signature of BOM-less UTF-16
// over a bounded window. ASCII-heavy UTF-16 text has a NUL in nearly every
// other byte; genuine UTF-8/binary content does not.
func sniffBareUTF16(b []byte) (unicode.Endianness, bool) {
	const window = 1024
	if len(b) < 4 {
		return unicode.LittleEndian, false
	}
	n := len(b)
	if n > window {
		n = window
	}

	evenNul, oddNul := 0, 0
	for i := 0; i < n; i++ {
		if b[i] != 0 {
			continue
		}
		if i%2 == 0 {
			evenNul++
		} else {
			oddNul++
		}
	}

	half := n / 2
	switch {
	case oddNul > half*3/4 && evenNul < half/8:
		return unicode.LittleEndian, true
	case evenNul > half*3/4 && oddNul < half/8:
		return unicode.BigEndian, true
	}
	return unicode.LittleEndian, false
}
