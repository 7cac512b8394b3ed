// Package markdown renders text for Telegram's MarkdownV2 parse mode.
package markdown

import "strings"

// ModeV2 is the parse mode name expected by the Bot API.
const ModeV2 = "MarkdownV2"

var v2Reserved = [256]bool{
	'\\': true,
	'_':  true,
	'*':  true,
	'[':  true,
	']':  true,
	'(':  true,
	')':  true,
	'~':  true,
	'`':  true,
	'>':  true,
	'#':  true,
	'+':  true,
	'-':  true,
	'=':  true,
	'|':  true,
	'{':  true,
	'}':  true,
	'.':  true,
	'!':  true,
}

// EscapeV2 escapes every MarkdownV2 reserved character so text renders literally.
func EscapeV2(text string) string {
	if text == "" {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + 8)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if v2Reserved[ch] {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}

	return b.String()
}

// Bold wraps already-plain text in bold markers, escaping it first.
func Bold(text string) string {
	return "*" + EscapeV2(text) + "*"
}

// Italic wraps already-plain text in italic markers, escaping it first.
func Italic(text string) string {
	return "_" + EscapeV2(text) + "_"
}
