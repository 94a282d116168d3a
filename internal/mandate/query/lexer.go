package query

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tkIdent tokenKind = iota // field path or keyword
	tkOp                     // == != > >= < <=
	tkString
	tkNumber
	tkBool
	tkLParen
	tkRParen
	tkLBracket
	tkRBracket
	tkComma
	tkEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) is(kind tokenKind, keyword string) bool {
	return t.kind == kind && strings.EqualFold(t.text, keyword)
}

func lex(src string) ([]token, error) {
	var out []token
	for i := 0; i < len(src); {
		ch := rune(src[i])
		switch {
		case unicode.IsSpace(ch):
			i++
		case strings.ContainsRune("()[],", ch):
			out = append(out, token{kind: punct[ch], text: string(ch), pos: i})
			i++
		case strings.ContainsRune("=!<>", ch):
			n := 1
			if i+1 < len(src) && src[i+1] == '=' {
				n = 2
			}
			op := src[i : i+n]
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("query: bad operator %q at position %d", op, i)
			}
			out = append(out, token{kind: tkOp, text: op, pos: i})
			i += n
		case ch == '"' || ch == '\'':
			s, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			out = append(out, token{kind: tkString, text: s, pos: i})
			i = next
		case unicode.IsDigit(ch) || (ch == '-' && i+1 < len(src) && unicode.IsDigit(rune(src[i+1]))):
			j := i + 1
			for j < len(src) && (unicode.IsDigit(rune(src[j])) || src[j] == '.') {
				j++
			}
			out = append(out, token{kind: tkNumber, text: src[i:j], pos: i})
			i = j
		case unicode.IsLetter(ch) || ch == '_':
			j := i + 1
			for j < len(src) && isIdentChar(rune(src[j])) {
				j++
			}
			word := src[i:j]
			kind := tkIdent
			if strings.EqualFold(word, "true") || strings.EqualFold(word, "false") {
				kind = tkBool
			}
			out = append(out, token{kind: kind, text: word, pos: i})
			i = j
		default:
			return nil, fmt.Errorf("query: unexpected character %q at position %d", ch, i)
		}
	}
	return append(out, token{kind: tkEOF, pos: len(src)}), nil
}

var punct = map[rune]tokenKind{
	'(': tkLParen,
	')': tkRParen,
	'[': tkLBracket,
	']': tkRBracket,
	',': tkComma,
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}

// lexString reads a quoted literal starting at src[start] and returns its
// unescaped body and the index just past the closing quote.
func lexString(src string, start int) (string, int, error) {
	quote := src[start]
	var b strings.Builder
	for i := start + 1; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			i++
			b.WriteByte(src[i])
		case c == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("query: unterminated string starting at position %d", start)
}
