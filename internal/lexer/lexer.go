package lexer

import (
	"fmt"

	"github.com/ract-lang/ract/internal/token"
)

// maxDefineDepth bounds nested DEFINE substitution so circular
// definitions surface as an error instead of looping.
const maxDefineDepth = 16

// Error is a lexical error with its source position.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Pos.Source, e.Pos.Line, e.Msg)
}

// frame is one input cursor. The bottom frame reads the real source;
// frames above it replay DEFINE substitution text.
type frame struct {
	input   string
	pos     int  // current position in bytes
	readPos int  // next read position
	ch      byte // current char
}

// Lexer converts source text into a stream of tokens. DEFINE
// declarations are consumed here and never reach the parser; uses of a
// defined name replay its text through a cursor stack.
type Lexer struct {
	name    string
	line    int
	frames  []*frame
	defines *defineStack
	pending *token.Token
}

// New creates a lexer for the provided source text. name labels error
// positions.
func New(name, input string) *Lexer {
	l := &Lexer{
		name:    name,
		line:    1,
		defines: newDefineStack(),
	}
	l.pushFrame(input)
	return l
}

// PushDefineScope opens a DEFINE scope. The parser calls this when it
// enters a routine body.
func (l *Lexer) PushDefineScope() { l.defines.push() }

// PopDefineScope closes the innermost DEFINE scope.
func (l *Lexer) PopDefineScope() { l.defines.pop() }

// Next returns the next token, applying DEFINE substitution and
// consuming DEFINE declarations along the way.
func (l *Lexer) Next() (token.Token, error) {
	for {
		tok, err := l.scan()
		if err != nil {
			return token.Token{}, err
		}
		switch tok.Type {
		case token.Define:
			if err := l.readDefineList(); err != nil {
				return token.Token{}, err
			}
		case token.Ident:
			if text, ok := l.defines.get(tok.Literal); ok {
				if len(l.frames) >= maxDefineDepth {
					return token.Token{}, l.errorf("DEFINE substitution of %q too deep", tok.Literal)
				}
				l.pushFrame(text)
				continue
			}
			return tok, nil
		default:
			return tok, nil
		}
	}
}

// readDefineList consumes `name="text"` pairs after a DEFINE keyword.
// The token following the list is held back for the next scan.
func (l *Lexer) readDefineList() error {
	for {
		name, err := l.scan()
		if err != nil {
			return err
		}
		if name.Type != token.Ident {
			return l.errorf("DEFINE expects a name, got %s", name.Type)
		}
		eq, err := l.scan()
		if err != nil {
			return err
		}
		if eq.Type != token.Equal {
			return l.errorf("DEFINE %s expects '='", name.Literal)
		}
		val, err := l.scan()
		if err != nil {
			return err
		}
		if val.Type != token.String {
			return l.errorf("DEFINE %s expects a quoted value", name.Literal)
		}
		l.defines.set(name.Literal, val.Literal)

		next, err := l.scan()
		if err != nil {
			return err
		}
		if next.Type != token.Comma {
			l.pending = &next
			return nil
		}
	}
}

func (l *Lexer) pushFrame(input string) {
	f := &frame{input: input}
	l.frames = append(l.frames, f)
	l.readChar()
}

func (l *Lexer) cur() *frame { return l.frames[len(l.frames)-1] }

func (l *Lexer) readChar() {
	f := l.cur()
	if f.readPos >= len(f.input) {
		f.ch = 0
	} else {
		f.ch = f.input[f.readPos]
	}
	f.pos = f.readPos
	f.readPos++
}

func (l *Lexer) peekChar() byte {
	f := l.cur()
	if f.readPos >= len(f.input) {
		return 0
	}
	return f.input[f.readPos]
}

func (l *Lexer) makeToken(t token.Type, literal string) token.Token {
	return token.Token{Type: t, Literal: literal, Pos: l.position()}
}

func (l *Lexer) position() token.Position {
	return token.Position{Source: l.name, Line: l.line}
}

func (l *Lexer) errorf(format string, args ...any) error {
	return &Error{Pos: l.position(), Msg: fmt.Sprintf(format, args...)}
}

// scan returns the next raw token with no DEFINE processing.
func (l *Lexer) scan() (token.Token, error) {
	if l.pending != nil {
		tok := *l.pending
		l.pending = nil
		return tok, nil
	}

	for {
		l.skipWhitespace()

		f := l.cur()
		if f.ch == 0 {
			if len(l.frames) > 1 {
				l.frames = l.frames[:len(l.frames)-1]
				continue
			}
			return l.makeToken(token.EOF, ""), nil
		}

		if f.ch == ';' {
			l.skipLineComment()
			continue
		}

		switch {
		case isLetter(f.ch):
			word := l.readWord()
			return l.makeToken(token.LookupIdent(word), word), nil
		case isDigit(f.ch):
			return l.makeToken(token.Number, l.readDigits(isDigit)), nil
		}

		switch f.ch {
		case '$':
			l.readChar()
			digits := l.readDigits(isHexDigit)
			if digits == "" {
				return token.Token{}, l.errorf("malformed hex literal")
			}
			return l.makeToken(token.HexNum, digits), nil
		case '\'':
			l.readChar()
			if l.cur().ch == 0 {
				return token.Token{}, l.errorf("unterminated character literal")
			}
			tok := l.makeToken(token.CharLit, string(l.cur().ch))
			l.readChar()
			return tok, nil
		case '"':
			return l.readString()
		case '=':
			if l.peekChar() == '=' {
				l.readChar()
				l.readChar()
				return l.makeToken(token.SelfAssign, "=="), nil
			}
			return l.single(token.Equal), nil
		case '<':
			switch l.peekChar() {
			case '=':
				l.readChar()
				l.readChar()
				return l.makeToken(token.LessEqual, "<="), nil
			case '>':
				l.readChar()
				l.readChar()
				return l.makeToken(token.NotEqual, "<>"), nil
			}
			return l.single(token.Less), nil
		case '>':
			if l.peekChar() == '=' {
				l.readChar()
				l.readChar()
				return l.makeToken(token.GreaterEqual, ">="), nil
			}
			return l.single(token.Greater), nil
		case '#':
			return l.single(token.NotEqual), nil
		case '+':
			return l.single(token.Plus), nil
		case '-':
			return l.single(token.Minus), nil
		case '*':
			return l.single(token.Star), nil
		case '/':
			return l.single(token.Slash), nil
		case '&':
			return l.single(token.Amp), nil
		case '%':
			return l.single(token.Percent), nil
		case '!':
			return l.single(token.Xor), nil
		case '^':
			return l.single(token.Caret), nil
		case '@':
			return l.single(token.At), nil
		case '(':
			return l.single(token.LParen), nil
		case ')':
			return l.single(token.RParen), nil
		case '[':
			return l.single(token.LBracket), nil
		case ']':
			return l.single(token.RBracket), nil
		case '.':
			return l.single(token.Dot), nil
		case ',':
			return l.single(token.Comma), nil
		}

		return token.Token{}, l.errorf("unexpected character %q", string(f.ch))
	}
}

func (l *Lexer) single(t token.Type) token.Token {
	tok := l.makeToken(t, string(l.cur().ch))
	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespace() {
	for {
		ch := l.cur().ch
		if ch == '\n' {
			if len(l.frames) == 1 {
				l.line++
			}
			l.readChar()
			continue
		}
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.readChar()
			continue
		}
		return
	}
}

func (l *Lexer) skipLineComment() {
	for l.cur().ch != '\n' && l.cur().ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) readWord() string {
	f := l.cur()
	start := f.pos
	for isLetter(f.ch) || isDigit(f.ch) {
		l.readChar()
	}
	return f.input[start:f.pos]
}

func (l *Lexer) readDigits(valid func(byte) bool) string {
	f := l.cur()
	start := f.pos
	for valid(f.ch) {
		l.readChar()
	}
	return f.input[start:f.pos]
}

func (l *Lexer) readString() (token.Token, error) {
	f := l.cur()
	l.readChar()
	start := f.pos
	for f.ch != '"' {
		if f.ch == 0 || f.ch == '\n' {
			return token.Token{}, l.errorf("unterminated string")
		}
		l.readChar()
	}
	tok := l.makeToken(token.String, f.input[start:f.pos])
	l.readChar()
	return tok, nil
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F'
}
