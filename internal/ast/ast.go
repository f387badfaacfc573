// Package ast defines the small surface syntax tree produced by package
// parser: symbol declarations, rewrite rules, and the expression forms
// needed to write them (sorts, products, abstractions, application,
// qualified names).
package ast

import "github.com/lambdapi-go/lambdapi/internal/lexer"

// Node is the base interface for every AST node.
type Node interface {
	TokenLiteral() string
}

// Expr is an expression node: a sort, a name, a product, an abstraction,
// or an application.
type Expr interface {
	Node
	exprNode()
}

// Decl is a top-level declaration: a static/definable symbol or a rule.
type Decl interface {
	Node
	declNode()
}

// Ident is a (possibly module-qualified) name, e.g. x or nat.plus.
type Ident struct {
	Token lexer.Token
	Name  string
}

func (i *Ident) TokenLiteral() string { return i.Token.Literal }
func (*Ident) exprNode()              {}

// SortExpr is the literal Type or Kind.
type SortExpr struct {
	Token lexer.Token
	Kind  bool // true for Kind, false for Type
}

func (s *SortExpr) TokenLiteral() string { return s.Token.Literal }
func (*SortExpr) exprNode()              {}

// ProdExpr is a dependent product: either the non-dependent A -> B
// (Name == "") or the named x : A -> B.
type ProdExpr struct {
	Token lexer.Token
	Name  string
	Dom   Expr
	Body  Expr
}

func (p *ProdExpr) TokenLiteral() string { return p.Token.Literal }
func (*ProdExpr) exprNode()              {}

// AbstExpr is a λ-abstraction x : A => t or x => t (Dom == nil).
type AbstExpr struct {
	Token lexer.Token
	Name  string
	Dom   Expr // nil if the parameter type was left implicit
	Body  Expr
}

func (a *AbstExpr) TokenLiteral() string { return a.Token.Literal }
func (*AbstExpr) exprNode()              {}

// ApplExpr is application by juxtaposition: Fun Arg.
type ApplExpr struct {
	Token lexer.Token
	Fun   Expr
	Arg   Expr
}

func (a *ApplExpr) TokenLiteral() string { return a.Token.Literal }
func (*ApplExpr) exprNode()              {}

// StaticDecl declares an opaque constant: static name : Type.
type StaticDecl struct {
	Token lexer.Token
	Name  string
	Type  Expr
}

func (d *StaticDecl) TokenLiteral() string { return d.Token.Literal }
func (*StaticDecl) declNode()              {}

// DefDecl declares a definable symbol: def name : Type.
type DefDecl struct {
	Token lexer.Token
	Name  string
	Type  Expr
}

func (d *DefDecl) TokenLiteral() string { return d.Token.Literal }
func (*DefDecl) declNode()              {}

// RuleDecl is a rewrite rule lhs --> rhs. Both sides are parsed as plain
// Expr; which identifiers are pattern variables (as opposed to
// references to already-declared symbols) is resolved by the
// typechecker, not the parser (the matcher itself has no opinion on
// surface syntax).
type RuleDecl struct {
	Token lexer.Token
	Vars  []string // declared pattern variables, e.g. [x, y]
	LHS   Expr
	RHS   Expr
}

func (r *RuleDecl) TokenLiteral() string { return r.Token.Literal }
func (*RuleDecl) declNode()              {}

// Import is a module import by path.
type Import struct {
	Token lexer.Token
	Path  string
}

func (i *Import) TokenLiteral() string { return i.Token.Literal }

// Module is a whole parsed source file.
type Module struct {
	Name    string
	Imports []*Import
	Decls   []Decl
}
