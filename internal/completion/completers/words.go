// Package completers provides the completion providers for shell command
// lines: keywords, commands, bash completion specs, files, history, snippets
// and model predictions.
package completers

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/samber/lo"
)

// shellLanguages are the editor languages the providers in this package serve.
var shellLanguages = []string{"", "shell", "bash", "sh"}

func isShellContext(ec *completion.EditorContext) bool {
	if ec == nil {
		return true
	}
	return lo.Contains(shellLanguages, strings.ToLower(ec.Language))
}

// WordBounds finds the start and end byte offsets of the word under the
// cursor. Words are separated by whitespace that is not escaped with a
// backslash. An offset outside the text is clamped to it.
func WordBounds(text string, offset int) (int, int) {
	offset = clampOffset(text, offset)

	start := 0
	escaped := false
	for i, r := range text[:offset] {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case unicode.IsSpace(r):
			start = i + utf8.RuneLen(r)
		}
	}

	end := offset
	for end < len(text) {
		r, size := utf8.DecodeRuneInString(text[end:])
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case unicode.IsSpace(r):
			return start, end
		}
		end += size
	}

	return start, end
}

// unescapeWord removes the backslashes escaping characters of a word.
func unescapeWord(word string) string {
	if !strings.Contains(word, `\`) {
		return word
	}
	var b strings.Builder
	escaped := false
	for _, r := range word {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

func clampOffset(text string, offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(text) {
		return len(text)
	}
	return offset
}

// lineContext is the part of the command line a provider cares about: the
// words before the cursor and the partial word being completed.
type lineContext struct {
	start, end int
	word       string   // text of the current word up to the cursor
	words      []string // words before the current one
}

func newLineContext(text string, offset int) lineContext {
	offset = clampOffset(text, offset)
	start, end := WordBounds(text, offset)
	return lineContext{
		start: start,
		end:   end,
		word:  text[start:offset],
		words: SplitPreservingQuotes(text[:start]),
	}
}

// isFirstWord reports whether the cursor is on the command position.
func (lc lineContext) isFirstWord() bool {
	return len(lc.words) == 0
}

// SplitPreservingQuotes splits a line on whitespace, keeping quoted
// sections together. Quote characters are removed from the result.
func SplitPreservingQuotes(line string) []string {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case unicode.IsSpace(r):
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if inWord {
		words = append(words, current.String())
	}
	return words
}

// lineCompletion locates where a whole-line completion of the text before
// the cursor can be inserted. Candidates must start with input; the text of
// a candidate from start on replaces the current word. It reports false
// when the cursor is not in the last word of the line.
func lineCompletion(text string, offset int) (start, end int, input string, ok bool) {
	offset = clampOffset(text, offset)
	start, end = WordBounds(text, offset)
	if strings.TrimSpace(text[end:]) != "" {
		return start, end, "", false
	}
	return start, end, text[:offset], true
}

// isLetterInsert reports whether an edit inserted exactly one letter.
func isLetterInsert(change completion.ChangeEvent) bool {
	if change.Removed != "" || utf8.RuneCountInString(change.Inserted) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(change.Inserted)
	return unicode.IsLetter(r)
}
