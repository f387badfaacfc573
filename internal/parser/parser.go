// Package parser is a recursive-descent parser turning lexer tokens into
// an ast.Module. It performs no semantic checks — symbol resolution,
// pattern-variable recognition, and type elaboration are all the
// typechecker's job.
package parser

import (
	"fmt"

	"github.com/lambdapi-go/lambdapi/internal/ast"
	"github.com/lambdapi-go/lambdapi/internal/lexer"
)

// ParseError reports a single syntax error with its source position.
type ParseError struct {
	Line, Column int
	Msg          string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

type Parser struct {
	l      *lexer.Lexer
	cur    lexer.Token
	peek   lexer.Token
	errors []error
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, &ParseError{Line: p.cur.Line, Column: p.cur.Column, Msg: fmt.Sprintf(format, args...)})
}

// Errors returns every syntax error accumulated during ParseModule.
func (p *Parser) Errors() []error { return p.errors }

func (p *Parser) expect(t lexer.TokenType, what string) lexer.Token {
	tok := p.cur
	if p.cur.Type != t {
		p.errorf("expected %s, got %q", what, p.cur.Literal)
	}
	p.advance()
	return tok
}

func (p *Parser) expectIdent() string {
	if p.cur.Type != lexer.IDENT {
		p.errorf("expected identifier, got %q", p.cur.Literal)
		name := p.cur.Literal
		p.advance()
		return name
	}
	name := p.cur.Literal
	p.advance()
	return name
}

// ParseModule parses an entire source file into an *ast.Module. Parsing
// continues past a malformed declaration (skipping to the next '.') so
// a single typo doesn't hide every other error in the file; callers
// should check Errors() before trusting the result.
func (p *Parser) ParseModule() *ast.Module {
	mod := &ast.Module{}

	if p.cur.Type == lexer.KW_MODULE {
		p.advance()
		mod.Name = p.expectIdent()
		p.expect(lexer.DOT, "'.'")
	}

	for p.cur.Type == lexer.KW_IMPORT {
		tok := p.cur
		p.advance()
		path := p.expectIdent()
		p.expect(lexer.DOT, "'.'")
		mod.Imports = append(mod.Imports, &ast.Import{Token: tok, Path: path})
	}

	for p.cur.Type != lexer.EOF {
		decl := p.parseDecl()
		if decl != nil {
			mod.Decls = append(mod.Decls, decl)
		} else {
			p.skipToNextDot()
		}
	}
	return mod
}

func (p *Parser) skipToNextDot() {
	for p.cur.Type != lexer.DOT && p.cur.Type != lexer.EOF {
		p.advance()
	}
	if p.cur.Type == lexer.DOT {
		p.advance()
	}
}

func (p *Parser) parseDecl() ast.Decl {
	switch p.cur.Type {
	case lexer.KW_STATIC:
		tok := p.cur
		p.advance()
		name := p.expectIdent()
		p.expect(lexer.COLON, "':'")
		typ := p.parseExpr()
		p.expect(lexer.DOT, "'.'")
		return &ast.StaticDecl{Token: tok, Name: name, Type: typ}

	case lexer.KW_DEF:
		tok := p.cur
		p.advance()
		name := p.expectIdent()
		p.expect(lexer.COLON, "':'")
		typ := p.parseExpr()
		p.expect(lexer.DOT, "'.'")
		return &ast.DefDecl{Token: tok, Name: name, Type: typ}

	case lexer.LBRACKET:
		return p.parseRule()

	default:
		p.errorf("expected a declaration ('static', 'def', or '[' rule), got %q", p.cur.Literal)
		return nil
	}
}

// parseRule parses "[x, y] lhs --> rhs." — the bracketed list declares
// which identifiers occurring in lhs are pattern variables.
func (p *Parser) parseRule() *ast.RuleDecl {
	tok := p.cur
	p.expect(lexer.LBRACKET, "'['")
	var vars []string
	if p.cur.Type != lexer.RBRACKET {
		vars = append(vars, p.expectIdent())
		for p.cur.Type == lexer.COMMA {
			p.advance()
			vars = append(vars, p.expectIdent())
		}
	}
	p.expect(lexer.RBRACKET, "']'")

	lhs := p.parseApplExpr()
	p.expect(lexer.RULE_ARROW, "'-->'")
	rhs := p.parseExpr()
	p.expect(lexer.DOT, "'.'")

	return &ast.RuleDecl{Token: tok, Vars: vars, LHS: lhs, RHS: rhs}
}

// ParseStandaloneExpr parses a single expression with no surrounding
// declaration syntax, for the CLI's `whnf` subcommand.
func (p *Parser) ParseStandaloneExpr() ast.Expr {
	return p.parseExpr()
}

// parseExpr parses a full type/term expression: dependent products and
// abstractions at the top, falling through to application and atoms.
func (p *Parser) parseExpr() ast.Expr {
	if p.cur.Type == lexer.IDENT && p.peek.Type == lexer.COLON {
		tok := p.cur
		name := p.cur.Literal
		p.advance() // ident
		p.advance() // ':'
		dom := p.parseApplExpr()
		switch p.cur.Type {
		case lexer.ARROW:
			p.advance()
			body := p.parseExpr()
			return &ast.ProdExpr{Token: tok, Name: name, Dom: dom, Body: body}
		case lexer.FATARROW:
			p.advance()
			body := p.parseExpr()
			return &ast.AbstExpr{Token: tok, Name: name, Dom: dom, Body: body}
		default:
			p.errorf("expected '->' or '=>' after binder annotation, got %q", p.cur.Literal)
			return dom
		}
	}

	if p.cur.Type == lexer.IDENT && p.peek.Type == lexer.FATARROW {
		tok := p.cur
		name := p.cur.Literal
		p.advance() // ident
		p.advance() // '=>'
		body := p.parseExpr()
		return &ast.AbstExpr{Token: tok, Name: name, Dom: nil, Body: body}
	}

	left := p.parseApplExpr()
	if p.cur.Type == lexer.ARROW {
		tok := p.cur
		p.advance()
		body := p.parseExpr()
		return &ast.ProdExpr{Token: tok, Name: "", Dom: left, Body: body}
	}
	return left
}

func (p *Parser) parseApplExpr() ast.Expr {
	left := p.parseAtom()
	for p.startsAtom() {
		arg := p.parseAtom()
		left = &ast.ApplExpr{Token: p.cur, Fun: left, Arg: arg}
	}
	return left
}

func (p *Parser) startsAtom() bool {
	switch p.cur.Type {
	case lexer.IDENT, lexer.LPAREN, lexer.KW_TYPE, lexer.KW_KIND:
		return true
	default:
		return false
	}
}

func (p *Parser) parseAtom() ast.Expr {
	switch p.cur.Type {
	case lexer.IDENT:
		tok := p.cur
		p.advance()
		return &ast.Ident{Token: tok, Name: tok.Literal}
	case lexer.KW_TYPE:
		tok := p.cur
		p.advance()
		return &ast.SortExpr{Token: tok, Kind: false}
	case lexer.KW_KIND:
		tok := p.cur
		p.advance()
		return &ast.SortExpr{Token: tok, Kind: true}
	case lexer.LPAREN:
		p.advance()
		e := p.parseExpr()
		p.expect(lexer.RPAREN, "')'")
		return e
	default:
		p.errorf("expected an expression, got %q", p.cur.Literal)
		tok := p.cur
		p.advance()
		return &ast.Ident{Token: tok, Name: "<error>"}
	}
}
