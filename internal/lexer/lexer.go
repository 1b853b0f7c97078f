package lexer

import (
	"bufio"
	"fmt"
	"io"
	"unicode"
)

type TokenType int

// Token types
const (
	LEX_EOF TokenType = iota
	LEX_IDENT
	LEX_VALREF
	LEX_KEYWORD
	LEX_OPERATOR
	LEX_PUNCTUATION
)

func (t TokenType) String() string {
	switch t {
	case LEX_EOF:
		return "EOF"
	case LEX_IDENT:
		return "IDENT"
	case LEX_VALREF:
		return "VALREF"
	case LEX_KEYWORD:
		return "KEYWORD"
	case LEX_OPERATOR:
		return "OPERATOR"
	case LEX_PUNCTUATION:
		return "PUNCTUATION"
	default:
		return "UNKNOWN"
	}
}

// Location is a position in the source text.
type Location struct {
	Filename string
	Line     int
	Col      int
}

func (loc Location) String() string {
	return fmt.Sprintf("%s:%d:%d", loc.Filename, loc.Line, loc.Col)
}

// Keywords of the graph language. The node-kind spellings are reserved so
// opaque operations cannot shadow them.
var keywords = map[string]bool{
	"graph":         true,
	"return":        true,
	"yield":         true,
	"grad_of":       true,
	"autograd_add":  true,
	"autograd_zero": true,
}

// Single-character operators and punctuation
var singleCharTokens = map[rune]TokenType{
	'(': LEX_PUNCTUATION,
	')': LEX_PUNCTUATION,
	'{': LEX_PUNCTUATION,
	'}': LEX_PUNCTUATION,
	'[': LEX_PUNCTUATION,
	']': LEX_PUNCTUATION,
	',': LEX_PUNCTUATION,
	':': LEX_PUNCTUATION,
	'<': LEX_PUNCTUATION,
	'>': LEX_PUNCTUATION,
	'=': LEX_OPERATOR,
}

type Lexeme struct {
	Type TokenType
	Str  string
	Loc  Location
}

func (l Lexeme) String() string {
	if l.Str == "" {
		return fmt.Sprintf("<%s>", l.Type)
	}
	return fmt.Sprintf("<%s %q>", l.Type, l.Str)
}

func (l Lexeme) IsKeyword(kv string) bool {
	return l.Type == LEX_KEYWORD && l.Str == kv
}

func (l Lexeme) IsPunctuation(pv string) bool {
	return l.Type == LEX_PUNCTUATION && l.Str == pv
}

func (l Lexeme) IsOperator(op string) bool {
	return l.Type == LEX_OPERATOR && l.Str == op
}

type Lexer struct {
	input     *bufio.Reader
	filename  string
	line      int
	col       int
	prevCol   int
	lastRune  rune
	lastSize  int
	hasUnread bool
}

func New(inputReader io.Reader, filename string) *Lexer {
	return &Lexer{
		input:    bufio.NewReader(inputReader),
		filename: filename,
		line:     1,
		col:      1,
		prevCol:  1,
	}
}

func (l *Lexer) loc(line, col int) Location {
	return Location{Filename: l.filename, Line: line, Col: col}
}

// readRune reads the next rune from the input
func (l *Lexer) readRune() (rune, int, error) {
	var r rune
	var size int
	var err error

	if l.hasUnread {
		l.hasUnread = false
		r, size, err = l.lastRune, l.lastSize, nil
	} else {
		l.prevCol = l.col
		r, size, err = l.input.ReadRune()
	}

	if err != nil {
		return 0, 0, err
	}

	l.lastRune = r
	l.lastSize = size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r, size, nil
}

// unreadRune puts back the last read rune.
// Should be called at most once per readRune.
func (l *Lexer) unreadRune() {
	l.hasUnread = true
	if l.lastRune == '\n' {
		l.line--
	}
	l.col = l.prevCol
}

// skipSpace skips whitespace characters
func (l *Lexer) skipSpace() error {
	for {
		r, _, err := l.readRune()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if !unicode.IsSpace(r) {
			l.unreadRune()
			return nil
		}
	}
}

// skipComment skips a C++ style comment (from // to end of line)
func (l *Lexer) skipComment() error {
	for {
		r, _, err := l.readRune()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if r == '\n' {
			// Don't unread the newline - we want to consume it
			return nil
		}
	}
}

// Next returns the next lexeme from the input
func (l *Lexer) Next() (Lexeme, error) {
	// Skip whitespace
	if err := l.skipSpace(); err != nil {
		return Lexeme{Type: LEX_EOF}, err
	}
	// Start position of the lexeme
	start := l.loc(l.line, l.col)
	// Read the first character
	r, _, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			return Lexeme{Type: LEX_EOF, Loc: start}, nil
		}
		return Lexeme{Type: LEX_EOF}, err
	}
	switch {
	case unicode.IsLetter(r) || r == '_':
		// Identifier or keyword
		l.unreadRune()
		return l.lexIdent(start)
	case r == '%':
		// Value reference like %x or %0
		return l.lexValRef(start)
	case r == '/':
		// Check for comment
		nextR, _, err := l.readRune()
		if err != nil && err != io.EOF {
			return Lexeme{Type: LEX_EOF}, err
		}
		if err == nil && nextR == '/' {
			// It's a comment, skip to end of line
			if err := l.skipComment(); err != nil {
				return Lexeme{Type: LEX_EOF}, err
			}
			return l.Next()
		}
		return Lexeme{}, fmt.Errorf("%s: unexpected character %q", start, r)
	default:
		// Check for single-character tokens
		if tokenType, ok := singleCharTokens[r]; ok {
			return Lexeme{
				Type: tokenType,
				Str:  string(r),
				Loc:  start,
			}, nil
		}
		return Lexeme{}, fmt.Errorf("%s: unexpected character %q", start, r)
	}
}

// lexIdent reads an identifier or keyword
func (l *Lexer) lexIdent(start Location) (Lexeme, error) {
	ident, err := l.readName()
	if err != nil {
		return Lexeme{}, err
	}

	// Check if it's a keyword
	if keywords[ident] {
		return Lexeme{
			Type: LEX_KEYWORD,
			Str:  ident,
			Loc:  start,
		}, nil
	}

	return Lexeme{
		Type: LEX_IDENT,
		Str:  ident,
		Loc:  start,
	}, nil
}

// lexValRef reads a value reference. The leading '%' is already consumed;
// Str holds the name without it.
func (l *Lexer) lexValRef(start Location) (Lexeme, error) {
	name, err := l.readName()
	if err != nil {
		return Lexeme{}, err
	}
	if name == "" {
		return Lexeme{}, fmt.Errorf("%s: expected a value name after '%%'", start)
	}
	return Lexeme{
		Type: LEX_VALREF,
		Str:  name,
		Loc:  start,
	}, nil
}

// readName reads a run of letters, digits and underscores, possibly empty.
func (l *Lexer) readName() (string, error) {
	var name string
	for {
		r, _, err := l.readRune()
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			l.unreadRune()
			break
		}

		name += string(r)
	}
	return name, nil
}
