package telegram

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	mdHeader = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	mdBold   = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	mdItalic = regexp.MustCompile(`\*([^*\n]+?)\*`)
	mdCode   = regexp.MustCompile("`([^`\n]+)`")
	mdBullet = regexp.MustCompile(`(?m)^\s*[-*]\s+`)
	mdSlot   = regexp.MustCompile("\x00([0-9]+)\x00")
)

// Markdown переводит markdown толкования в HTML-подмножество Telegram.
// Поддерживаются заголовки, жирный, курсив, код и маркированные списки.
// Содержимое `кода` не размечается.
func Markdown(text string) string {
	out := strings.ReplaceAll(strings.TrimSpace(text), "\x00", "")
	out = html.EscapeString(out)

	var codes []string
	out = mdCode.ReplaceAllStringFunc(out, func(m string) string {
		codes = append(codes, m[1:len(m)-1])
		return "\x00" + strconv.Itoa(len(codes)-1) + "\x00"
	})

	out = mdHeader.ReplaceAllString(out, "<b>$1</b>")
	out = mdBullet.ReplaceAllString(out, "• ")
	out = mdBold.ReplaceAllStringFunc(out, func(m string) string {
		return "<b>" + m[2:len(m)-2] + "</b>"
	})
	out = mdItalic.ReplaceAllStringFunc(out, func(m string) string {
		return "<i>" + m[1:len(m)-1] + "</i>"
	})
	out = underscoreItalic(out)

	return mdSlot.ReplaceAllStringFunc(out, func(m string) string {
		i, _ := strconv.Atoi(m[1 : len(m)-1])
		return "<code>" + codes[i] + "</code>"
	})
}

// underscoreItalic размечает _курсив_ только на границах слов,
// подчёркивания внутри snake_case и ссылок остаются как есть.
func underscoreItalic(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '_' && wordStart(s, i) {
			if j := italicEnd(s, i+1); j > 0 {
				b.WriteString("<i>" + s[i+1:j] + "</i>")
				i = j + 1
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func wordStart(s string, i int) bool {
	if i+1 >= len(s) || s[i+1] == '_' || s[i+1] == ' ' || s[i+1] == '\n' {
		return false
	}
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !wordRune(r)
}

// italicEnd индекс закрывающего подчёркивания в той же строке или -1.
func italicEnd(s string, from int) int {
	for k := from; k < len(s); k++ {
		switch s[k] {
		case '\n':
			return -1
		case '_':
			if k == from || s[k-1] == ' ' {
				continue
			}
			if k+1 == len(s) {
				return k
			}
			if r, _ := utf8.DecodeRuneInString(s[k+1:]); !wordRune(r) {
				return k
			}
		}
	}
	return -1
}

func wordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '/'
}
