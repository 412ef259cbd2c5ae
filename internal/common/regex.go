package common

import (
	"regexp"
	"regexp/syntax"
	"strings"
)

// MatchRegex compiles and matches a regex pattern against a string.
// Returns true if the pattern matches, false otherwise.
// Returns an error if the pattern is invalid.
func MatchRegex(pattern, text string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(text), nil
}

// LiteralCore extracts the literal text a pattern is anchored around,
// discarding anchors, repetitions, and character classes. "^SHELL\s+STATION"
// becomes "SHELL STATION". Alternations contribute their first branch only so
// the result is deterministic. An uncompilable pattern yields "".
func LiteralCore(pattern string) string {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return ""
	}
	re = re.Simplify()

	var b strings.Builder
	writeLiteral(&b, re)

	return strings.Join(strings.Fields(b.String()), " ")
}

func writeLiteral(b *strings.Builder, re *syntax.Regexp) {
	switch re.Op {
	case syntax.OpLiteral:
		b.WriteString(string(re.Rune))
	case syntax.OpConcat, syntax.OpCapture, syntax.OpPlus:
		for _, sub := range re.Sub {
			writeLiteral(b, sub)
		}
	case syntax.OpAlternate:
		if len(re.Sub) > 0 {
			writeLiteral(b, re.Sub[0])
		}
	case syntax.OpCharClass:
		// Whitespace classes act as separators; anything else is dropped.
		for i := 0; i+1 < len(re.Rune); i += 2 {
			if re.Rune[i] <= ' ' && ' ' <= re.Rune[i+1] {
				b.WriteByte(' ')
				break
			}
		}
	default:
		// Anchors, stars, and wildcards carry no literal text.
	}
}

// Tokenize lowercases a string and splits it into alphanumeric tokens.
// Narrative text, brand names, and pattern cores all tokenize the same way so
// overlap comparisons are consistent across components.
func Tokenize(s string) []string {
	s = strings.ToLower(s)
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

// TokenSet returns the tokens of a string as a membership set.
func TokenSet(s string) map[string]bool {
	tokens := Tokenize(s)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
