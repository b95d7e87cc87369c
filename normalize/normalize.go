// Package normalize rewrites raw transcription output into typed-looking
// text: spoken punctuation, newline phrases, number words, sentence
// capitalization. Normalize is pure; every rule sits behind its own toggle
// so preferences map one-to-one onto Options.
package normalize

import (
	"strconv"
	"strings"
	"unicode"
)

type Options struct {
	Numbers           bool
	SpokenPunctuation bool
	NewlinePhrases    bool
	AutoCapitalize    bool
}

// DefaultOptions enables every rule.
func DefaultOptions() Options {
	return Options{Numbers: true, SpokenPunctuation: true, NewlinePhrases: true, AutoCapitalize: true}
}

var punctuation = map[string]string{
	"period":    ".",
	"comma":     ",",
	"colon":     ":",
	"semicolon": ";",
	"dash":      "-",
	"hyphen":    "-",
}

var punctuationPairs = map[string]string{
	"question mark":     "?",
	"exclamation mark":  "!",
	"exclamation point": "!",
}

var ones = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tens = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// Normalize applies the enabled rewrite rules in one pass over the token
// stream, then capitalizes sentence starts.
func Normalize(text string, opts Options) string {
	tokens := strings.Fields(text)
	var b strings.Builder
	b.Grow(len(text))
	needSpace := false

	for i := 0; i < len(tokens); i++ {
		lower := strings.ToLower(tokens[i])
		var pair string
		if i+1 < len(tokens) {
			pair = lower + " " + strings.ToLower(tokens[i+1])
		}

		if opts.NewlinePhrases {
			if pair == "new line" {
				b.WriteString("\n")
				needSpace = false
				i++
				continue
			}
			if pair == "new paragraph" {
				b.WriteString("\n\n")
				needSpace = false
				i++
				continue
			}
			if lower == "newline" {
				b.WriteString("\n")
				needSpace = false
				continue
			}
		}

		if opts.SpokenPunctuation {
			if p, ok := punctuationPairs[pair]; ok {
				b.WriteString(p)
				needSpace = true
				i++
				continue
			}
			if p, ok := punctuation[lower]; ok {
				b.WriteString(p)
				needSpace = true
				continue
			}
		}

		word := tokens[i]
		if opts.Numbers {
			if t, ok := tens[lower]; ok && i+1 < len(tokens) {
				if o, ok := ones[strings.ToLower(tokens[i+1])]; ok && o > 0 && o < 10 {
					word = strconv.Itoa(t + o)
					i++
				} else {
					word = strconv.Itoa(t)
				}
			} else if t, ok := tens[lower]; ok {
				word = strconv.Itoa(t)
			} else if o, ok := ones[lower]; ok {
				word = strconv.Itoa(o)
			}
		}

		if needSpace {
			b.WriteByte(' ')
		}
		b.WriteString(word)
		needSpace = true
	}

	out := b.String()
	if opts.AutoCapitalize {
		out = capitalizeSentences(out)
	}
	return out
}

// capitalizeSentences upper-cases the first letter of the text and the first
// letter after sentence-ending punctuation or a line break.
func capitalizeSentences(s string) string {
	rs := []rune(s)
	capNext := true
	for i, r := range rs {
		if capNext && unicode.IsLetter(r) {
			rs[i] = unicode.ToUpper(r)
			capNext = false
			continue
		}
		switch r {
		case '.', '!', '?', '\n':
			capNext = true
		}
	}
	return string(rs)
}
