package dnspipe

import (
	"fmt"
	"strings"
	"unicode"
)

// BuildProvider resolves a subscription expression like
//
//	nth(1, ipv6(my_interface))
//
// into a single provider using the named sources and filters in reg.
//
// A bare identifier refers to a source instance and evaluates to that
// source directly. A call refers to a filter type: the last argument is the
// upstream provider the filter pulls from, and any preceding arguments are
// passed to the filter's constructor as literal strings.
// The provider graph is built once, at startup;
// a bad expression fails here rather than during a check cycle.
func BuildProvider(expr string, reg *Registry) (Provider, error) {
	p := &exprParser{input: expr}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, userErrorf("unexpected %q at position %d in %q", rune(p.input[p.pos]), p.pos, expr)
	}
	return resolveNode(node, reg)
}

type exprNode interface{ exprAST() }

type identNode struct {
	name string
}

type callNode struct {
	name string
	args []exprNode
}

type literalNode struct {
	value string
}

func (identNode) exprAST()   {}
func (callNode) exprAST()    {}
func (literalNode) exprAST() {}

func resolveNode(node exprNode, reg *Registry) (Provider, error) {
	switch n := node.(type) {
	case identNode:
		src, ok := reg.source(n.name)
		if !ok {
			return nil, userErrorf("unknown filter or source: %q", n.name)
		}
		return src, nil
	case callNode:
		ctor, ok := reg.filter(n.name)
		if !ok {
			return nil, userErrorf("unknown filter or source: %q", n.name)
		}
		if len(n.args) == 0 {
			return nil, userErrorf("filter %q requires a source or filter as its last argument", n.name)
		}
		parent, err := resolveNode(n.args[len(n.args)-1], reg)
		if err != nil {
			return nil, err
		}
		var ctorArgs []string
		for _, arg := range n.args[:len(n.args)-1] {
			lit, ok := arg.(literalNode)
			if !ok {
				return nil, userErrorf("filter %q: only the last argument may be a source or filter expression", n.name)
			}
			ctorArgs = append(ctorArgs, lit.value)
		}
		f, err := ctor(ctorArgs...)
		if err != nil {
			return nil, userErrorf("filter %q: %v", n.name, err)
		}
		return Bind(f, parent), nil
	case literalNode:
		return nil, userErrorf("expected a source or filter expression, found literal %q", n.value)
	default:
		return nil, fmt.Errorf("unhandled expression node %T", node)
	}
}

// exprParser is a hand-written recursive-descent parser over the grammar
//
//	expr    := ident | ident '(' arglist? ')'
//	arglist := arg (',' arg)*
//	arg     := expr | string-literal | number-literal
//
// Subscription expressions come from configuration files,
// so the parser accepts nothing beyond this grammar:
// there is deliberately no way for a config string to run arbitrary code.
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) parseExpr() (exprNode, error) {
	p.skipSpace()
	name := p.scanIdent()
	if name == "" {
		return nil, userErrorf("expected a name at position %d in %q", p.pos, p.input)
	}
	p.skipSpace()
	if !p.consume('(') {
		return identNode{name: name}, nil
	}
	call := callNode{name: name}
	p.skipSpace()
	if p.consume(')') {
		return call, nil
	}
	for {
		arg, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		call.args = append(call.args, arg)
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(')') {
			return call, nil
		}
		return nil, userErrorf("expected ',' or ')' at position %d in %q", p.pos, p.input)
	}
}

func (p *exprParser) parseArg() (exprNode, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, userErrorf("unexpected end of expression %q", p.input)
	}
	switch c := p.input[p.pos]; {
	case c == '\'' || c == '"':
		return p.scanString()
	case c == '-' || unicode.IsDigit(rune(c)):
		return p.scanNumber()
	default:
		return p.parseExpr()
	}
}

func (p *exprParser) scanIdent() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if unicode.IsLetter(c) || c == '_' || (p.pos > start && unicode.IsDigit(c)) {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *exprParser) scanString() (exprNode, error) {
	start := p.pos
	quote := p.input[p.pos]
	p.pos++
	end := strings.IndexByte(p.input[p.pos:], quote)
	if end < 0 {
		return nil, userErrorf("unterminated string at position %d in %q", start, p.input)
	}
	value := p.input[p.pos : p.pos+end]
	p.pos += end + 1
	return literalNode{value: value}, nil
}

func (p *exprParser) scanNumber() (exprNode, error) {
	start := p.pos
	if p.input[p.pos] == '-' {
		p.pos++
	}
	digits := 0
	for p.pos < len(p.input) && unicode.IsDigit(rune(p.input[p.pos])) {
		p.pos++
		digits++
	}
	if digits == 0 {
		return nil, userErrorf("expected a number at position %d in %q", start, p.input)
	}
	return literalNode{value: p.input[start:p.pos]}, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) consume(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}
