package parser

import (
	"fmt"
	"io"

	"github.com/DuckSoft/gradir/internal/ir"
	"github.com/DuckSoft/gradir/internal/lexer"
	"github.com/DuckSoft/gradir/internal/types"
)

type Parser struct {
	lexer   *lexer.Lexer
	lexemes []lexer.Lexeme
	pos     int
}

func New(lex *lexer.Lexer) *Parser {
	return &Parser{lexer: lex}
}

// Parse reads a whole module from r. filename is used in error messages.
func Parse(r io.Reader, filename string) (*ir.Module, error) {
	return New(lexer.New(r, filename)).ParseModule()
}

func (p *Parser) consume() (lexer.Lexeme, error) {
	if p.pos >= len(p.lexemes) {
		lex, err := p.lexer.Next()
		if err != nil {
			return lexer.Lexeme{}, err
		}
		p.lexemes = append(p.lexemes, lex)
	}
	lex := p.lexemes[p.pos]
	p.pos++
	return lex, nil
}

func (p *Parser) peek() (lexer.Lexeme, error) {
	if p.pos >= len(p.lexemes) {
		lex, err := p.lexer.Next()
		if err != nil {
			return lexer.Lexeme{}, err
		}
		p.lexemes = append(p.lexemes, lex)
	}
	return p.lexemes[p.pos], nil
}

func (p *Parser) expectKeyword(kw string) (lexer.Lexeme, error) {
	lex, err := p.consume()
	if err != nil {
		return lexer.Lexeme{}, err
	}
	if !lex.IsKeyword(kw) {
		return lexer.Lexeme{}, fmt.Errorf("%s: expected '%s', got %v", lex.Loc, kw, lex)
	}
	return lex, nil
}

func (p *Parser) expectPunctuation(pv string) (lexer.Lexeme, error) {
	lex, err := p.consume()
	if err != nil {
		return lexer.Lexeme{}, err
	}
	if !lex.IsPunctuation(pv) {
		return lexer.Lexeme{}, fmt.Errorf("%s: expected '%s', got %v", lex.Loc, pv, lex)
	}
	return lex, nil
}

func (p *Parser) expectOperator(op string) (lexer.Lexeme, error) {
	lex, err := p.consume()
	if err != nil {
		return lexer.Lexeme{}, err
	}
	if !lex.IsOperator(op) {
		return lexer.Lexeme{}, fmt.Errorf("%s: expected '%s', got %v", lex.Loc, op, lex)
	}
	return lex, nil
}

func (p *Parser) expectValRef() (lexer.Lexeme, error) {
	lex, err := p.consume()
	if err != nil {
		return lexer.Lexeme{}, err
	}
	if lex.Type != lexer.LEX_VALREF {
		return lexer.Lexeme{}, fmt.Errorf("%s: expected a value reference, got %v", lex.Loc, lex)
	}
	return lex, nil
}

// ParseModule parses a sequence of graphs up to end of input.
func (p *Parser) ParseModule() (*ir.Module, error) {
	m := &ir.Module{}
	seen := map[string]bool{}
	for {
		lex, err := p.peek()
		if err != nil {
			return nil, err
		}
		if lex.Type == lexer.LEX_EOF {
			break
		}
		g, err := p.parseGraph()
		if err != nil {
			return nil, err
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("%s: duplicate graph name %s", lex.Loc, g.Name)
		}
		seen[g.Name] = true
		m.Graphs = append(m.Graphs, g)
	}
	return m, nil
}

// ParseGraph parses exactly one graph.
func (p *Parser) ParseGraph() (*ir.Graph, error) {
	g, err := p.parseGraph()
	if err != nil {
		return nil, err
	}
	lex, err := p.peek()
	if err != nil {
		return nil, err
	}
	if lex.Type != lexer.LEX_EOF {
		return nil, fmt.Errorf("%s: expected end of input, got %v", lex.Loc, lex)
	}
	return g, nil
}

func (p *Parser) parseGraph() (*ir.Graph, error) {
	if _, err := p.expectKeyword("graph"); err != nil {
		return nil, err
	}
	lex, err := p.consume()
	if err != nil {
		return nil, err
	}
	if lex.Type != lexer.LEX_IDENT {
		return nil, fmt.Errorf("%s: expected graph name, got %v", lex.Loc, lex)
	}
	g := ir.NewGraph(lex.Str)

	if _, err := p.expectPunctuation("("); err != nil {
		return nil, err
	}
	if err := p.parseParams(g); err != nil {
		return nil, err
	}
	if _, err := p.expectPunctuation("{"); err != nil {
		return nil, err
	}
	if err := p.parseBlockContents(g, g.Block()); err != nil {
		return nil, err
	}
	if _, err := p.expectPunctuation("}"); err != nil {
		return nil, err
	}
	return g, nil
}

// parseParams parses the graph input list including the closing ')'.
func (p *Parser) parseParams(g *ir.Graph) error {
	lex, err := p.peek()
	if err != nil {
		return err
	}
	if lex.IsPunctuation(")") {
		_, err := p.consume()
		return err
	}
	for {
		lex, err := p.expectValRef()
		if err != nil {
			return err
		}
		if g.FindValue(lex.Str) != nil {
			return fmt.Errorf("%s: duplicate value name %%%s", lex.Loc, lex.Str)
		}
		if _, err := p.expectPunctuation(":"); err != nil {
			return err
		}
		typ, err := p.parseType()
		if err != nil {
			return err
		}
		g.AddInput(lex.Str, typ)

		next, err := p.consume()
		if err != nil {
			return err
		}
		if next.IsPunctuation(")") {
			return nil
		}
		if !next.IsPunctuation(",") {
			return fmt.Errorf("%s: expected ',' or ')', got %v", next.Loc, next)
		}
	}
}

func (p *Parser) parseType() (types.Type, error) {
	lex, err := p.consume()
	if err != nil {
		return nil, err
	}
	if lex.Type != lexer.LEX_IDENT {
		return nil, fmt.Errorf("%s: expected a type, got %v", lex.Loc, lex)
	}
	if lex.Str != "tensor" {
		switch lex.Str {
		case "int":
			return types.Int, nil
		case "float":
			return types.Float, nil
		case "bool":
			return types.Bool, nil
		default:
			return types.NewScalar(lex.Str), nil
		}
	}

	next, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case next.IsPunctuation("<"):
		if _, err := p.consume(); err != nil {
			return nil, err
		}
		flag, err := p.consume()
		if err != nil {
			return nil, err
		}
		var typ types.Type
		switch {
		case flag.Type == lexer.LEX_IDENT && flag.Str == "zero":
			typ = types.ZeroTensor
		case flag.Type == lexer.LEX_IDENT && flag.Str == "nonzero":
			typ = types.NonzeroTensor
		default:
			return nil, fmt.Errorf("%s: expected 'zero' or 'nonzero', got %v", flag.Loc, flag)
		}
		if _, err := p.expectPunctuation(">"); err != nil {
			return nil, err
		}
		return typ, nil
	case next.IsPunctuation("["):
		if _, err := p.consume(); err != nil {
			return nil, err
		}
		if _, err := p.expectPunctuation("]"); err != nil {
			return nil, err
		}
		return types.TensorList, nil
	default:
		return types.Tensor, nil
	}
}

// parseBlockContents parses statements up to the block terminator. The
// terminator keyword is "return" in the primary block and "yield" in region
// bodies. The closing '}' is left for the caller.
func (p *Parser) parseBlockContents(g *ir.Graph, b *ir.Block) error {
	keyword := "return"
	if b.Owner() != nil {
		keyword = "yield"
	}
	for {
		lex, err := p.peek()
		if err != nil {
			return err
		}
		if lex.IsKeyword(keyword) {
			break
		}
		if lex.IsKeyword("return") || lex.IsKeyword("yield") {
			return fmt.Errorf("%s: expected '%s', got %v", lex.Loc, keyword, lex)
		}
		if err := p.parseStatement(g, b); err != nil {
			return err
		}
	}
	if _, err := p.consume(); err != nil {
		return err
	}
	// Terminator operands run up to the closing '}'.
	for {
		lex, err := p.peek()
		if err != nil {
			return err
		}
		if lex.IsPunctuation("}") {
			return nil
		}
		if len(b.Outputs()) > 0 {
			if _, err := p.expectPunctuation(","); err != nil {
				return err
			}
		}
		ref, err := p.expectValRef()
		if err != nil {
			return err
		}
		v := g.FindValue(ref.Str)
		if v == nil {
			return fmt.Errorf("%s: undefined value %%%s", ref.Loc, ref.Str)
		}
		b.AddOutput(v)
	}
}

// parseStatement parses one definition of the form
// %a, %b = op(%x, %y) with an optional region body.
func (p *Parser) parseStatement(g *ir.Graph, b *ir.Block) error {
	var defs []lexer.Lexeme
	for {
		lex, err := p.expectValRef()
		if err != nil {
			return err
		}
		if g.FindValue(lex.Str) != nil {
			return fmt.Errorf("%s: duplicate value name %%%s", lex.Loc, lex.Str)
		}
		for _, prev := range defs {
			if prev.Str == lex.Str {
				return fmt.Errorf("%s: duplicate value name %%%s", lex.Loc, lex.Str)
			}
		}
		defs = append(defs, lex)

		next, err := p.consume()
		if err != nil {
			return err
		}
		if next.IsOperator("=") {
			break
		}
		if !next.IsPunctuation(",") {
			return fmt.Errorf("%s: expected ',' or '=', got %v", next.Loc, next)
		}
	}

	op, err := p.consume()
	if err != nil {
		return err
	}
	var kind ir.Kind
	switch {
	case op.IsKeyword("grad_of"):
		kind = ir.KindGradOf
	case op.IsKeyword("autograd_add"):
		kind = ir.KindAutogradAdd
	case op.IsKeyword("autograd_zero"):
		kind = ir.KindAutogradZero
	case op.Type == lexer.LEX_IDENT:
		kind = ir.KindOp
	default:
		return fmt.Errorf("%s: expected an operation, got %v", op.Loc, op)
	}

	args, err := p.parseArgs(g)
	if err != nil {
		return err
	}

	var n *ir.Node
	if kind == ir.KindOp {
		n = g.NewOp(op.Str, args...)
	} else {
		n = g.NewNode(kind, args...)
	}
	b.Append(n)

	// Region bodies are parsed before the outputs are declared so that the
	// body cannot reference them.
	if kind == ir.KindGradOf {
		if _, err := p.expectPunctuation("{"); err != nil {
			return err
		}
		if err := p.parseBlockContents(g, n.Body()); err != nil {
			return err
		}
		if _, err := p.expectPunctuation("}"); err != nil {
			return err
		}
	}

	for _, def := range defs {
		typ := types.Type(types.Tensor)
		if kind == ir.KindAutogradZero {
			typ = types.ZeroTensor
		}
		n.AddNamedOutput(def.Str, typ)
	}
	return nil
}

// parseArgs parses a parenthesized list of value references.
func (p *Parser) parseArgs(g *ir.Graph) ([]*ir.Value, error) {
	if _, err := p.expectPunctuation("("); err != nil {
		return nil, err
	}
	lex, err := p.peek()
	if err != nil {
		return nil, err
	}
	if lex.IsPunctuation(")") {
		_, err := p.consume()
		return nil, err
	}
	var args []*ir.Value
	for {
		ref, err := p.expectValRef()
		if err != nil {
			return nil, err
		}
		v := g.FindValue(ref.Str)
		if v == nil {
			return nil, fmt.Errorf("%s: undefined value %%%s", ref.Loc, ref.Str)
		}
		args = append(args, v)

		next, err := p.consume()
		if err != nil {
			return nil, err
		}
		if next.IsPunctuation(")") {
			return args, nil
		}
		if !next.IsPunctuation(",") {
			return nil, fmt.Errorf("%s: expected ',' or ')', got %v", next.Loc, next)
		}
	}
}
