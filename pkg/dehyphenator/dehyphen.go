/*
Package dehyphenator joins words that OCR output splits across lines with a hyphen.

	A hyphen at the end of a line is removed unless the word is a compound,
	which is assumed when an uppercase letter is next to the hyphen
	(e.g. "OCR-" or "-Engine" on the next line, common in German text).
	Hyphen-only and empty lines become empty lines, so paragraph breaks survive,
	or are dropped when lines are joined.
*/
package dehyphenator

import (
	"bufio"
	"io"
	"strings"
	"unicode"
)

// maxLineSize bounds a single line; OCR of a wide page can exceed bufio's default
const maxLineSize = 16 << 20

type Options struct {
	// JoinLines replaces newlines with spaces, e.g. for search indexing
	JoinLines bool
}

// Dehyphenate reads lines from in and writes them to out with line-end hyphens removed
// where appropriate.
func Dehyphenate(in io.Reader, out io.Writer, opts Options) error {
	w := bufio.NewWriter(out)
	pendingHyphen := false
	lineEnd := "\n"
	if opts.JoinLines {
		lineEnd = " "
	}
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for s.Scan() {
		// U+FFFE is not a character; some engines emit it for unrecognized glyphs
		line := []rune(strings.TrimSpace(strings.ReplaceAll(s.Text(), "\uFFFE", "")))
		if len(line) == 0 || (len(line) == 1 && isHyphen(line[0])) {
			if !opts.JoinLines {
				w.WriteString(lineEnd)
			}
			continue
		}
		if pendingHyphen && unicode.IsUpper(line[0]) {
			// compound continues with an uppercase word: restore the hyphen
			w.WriteRune('-')
		}
		pendingHyphen = false
		n := len(line)
		switch {
		case !isHyphen(line[n-1]):
			w.WriteString(string(line))
			w.WriteString(lineEnd)
		case n > 1 && unicode.IsUpper(line[n-2]):
			w.WriteString(string(line))
		default:
			pendingHyphen = true
			w.WriteString(string(line[:n-1]))
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	return w.Flush()
}

func isHyphen(char rune) bool {
	return unicode.Is(unicode.Hyphen, char)
}

func DehyphenateString(in string, opts Options) (string, error) {
	var sb strings.Builder
	err := Dehyphenate(strings.NewReader(in), &sb, opts)
	return sb.String(), err
}
