// Package hexdump formats memory the way the kernel console prints it: sixteen
// bytes per row, rows aligned to sixteen-byte offsets, and an optional glyph
// column rendered through Code Page 437 as the VGA text console would show it.
// Freed memory (0xcc) therefore reads as a column of ╠ characters.
package hexdump

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// PerLine is the number of bytes shown on each row.
const PerLine = 16

// Glyph returns the CP437 glyph for b, or '.' for bytes that would not print.
func Glyph(b byte) rune {
	r := charmap.CodePage437.DecodeByte(b)
	if !unicode.IsPrint(r) {
		return '.'
	}
	return r
}

// Dump writes data to w, labelling rows with offsets starting at ofs. When
// ofs is not a multiple of PerLine, the first row is padded so that columns
// stay aligned. With ascii set, each row ends with a |glyph| column.
func Dump(w io.Writer, ofs uintptr, data []byte, ascii bool) error {
	var sb strings.Builder
	for len(data) > 0 {
		start := int(ofs % PerLine)
		n := min(PerLine-start, len(data))
		end := start + n

		sb.Reset()
		fmt.Fprintf(&sb, "%08x  ", ofs-uintptr(start))
		for i := range PerLine {
			switch {
			case i < start || i >= end:
				sb.WriteString("  ")
			default:
				fmt.Fprintf(&sb, "%02x", data[i-start])
			}
			if i == PerLine/2-1 {
				sb.WriteString("-")
			} else {
				sb.WriteString(" ")
			}
		}
		if ascii {
			sb.WriteString("|")
			for i := range PerLine {
				if i < start || i >= end {
					sb.WriteByte(' ')
					continue
				}
				sb.WriteRune(Glyph(data[i-start]))
			}
			sb.WriteString("|")
		}
		sb.WriteString("\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}

		ofs += uintptr(n)
		data = data[n:]
	}
	return nil
}

// String is Dump into a string.
func String(ofs uintptr, data []byte, ascii bool) string {
	var sb strings.Builder
	_ = Dump(&sb, ofs, data, ascii)
	return sb.String()
}
