package compiler

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/scanner"
	"unicode"

	"github.com/zclconf/go-cty/cty"
)

// unit is the parse result of one source file.
type unit struct {
	file    string
	groovy  bool
	pkg     string
	imports []string // explicit and on-demand ("a.b.*") type imports
	types   []*typeDecl
}

type typeDecl struct {
	name   string // simple name
	super  string // as written; empty when absent
	public bool
	fields map[string]cty.Value
	line   int
	column int
}

type token struct {
	kind rune
	text string
	pos  scanner.Position
}

var typeKeywords = map[string]bool{"class": true, "interface": true, "enum": true, "record": true}

var modifiers = map[string]bool{
	"public": true, "protected": true, "private": true, "static": true, "final": true,
	"abstract": true, "strictfp": true, "sealed": true, "transient": true, "volatile": true,
	"def": true,
}

var numericSuffixes = map[string]bool{"L": true, "l": true, "f": true, "F": true, "d": true, "D": true}

// parser reads the declaration structure of a Java or Groovy source file:
// package, imports, top-level types, their superclass and static fields with
// literal initialisers. Method bodies and initialiser blocks are skipped.
type parser struct {
	file   string
	groovy bool
	toks   []token
	i      int
	diags  Diagnostics
}

func parse(file string, src io.Reader) (*unit, Diagnostics) {
	p := &parser{file: file, groovy: strings.HasSuffix(file, ".groovy")}
	p.tokenize(src)
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	u := p.parseUnit()
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return u, nil
}

func (p *parser) tokenize(src io.Reader) {
	var s scanner.Scanner
	s.Init(src)
	s.Filename = p.file
	s.Mode = scanner.GoTokens
	s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || ch == '$' || unicode.IsLetter(ch) || (unicode.IsDigit(ch) && i > 0)
	}
	s.Error = func(s *scanner.Scanner, msg string) {
		if p.groovy && msg == "invalid char literal" {
			// Single quotes delimit strings in Groovy.
			return
		}
		p.diags = append(p.diags, &Diagnostic{File: p.file, Line: s.Pos().Line, Column: s.Pos().Column, Message: msg})
	}
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		p.toks = append(p.toks, token{kind: tok, text: s.TokenText(), pos: s.Position})
	}
}

func (p *parser) peek() token {
	if p.i < len(p.toks) {
		return p.toks[p.i]
	}
	last := scanner.Position{Filename: p.file, Line: 1, Column: 1}
	if n := len(p.toks); n > 0 {
		last = p.toks[n-1].pos
	}
	return token{kind: scanner.EOF, pos: last}
}

func (p *parser) next() token {
	t := p.peek()
	if p.i < len(p.toks) {
		p.i++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) {
	p.diags = append(p.diags, &Diagnostic{File: p.file, Line: t.pos.Line, Column: t.pos.Column, Message: fmt.Sprintf(format, args...)})
}

// qualifiedName reads ident ("." ident)* and optionally a trailing ".*".
func (p *parser) qualifiedName(allowWildcard bool) (string, bool) {
	t := p.next()
	if t.kind != scanner.Ident {
		p.errorf(t, "<identifier> expected")
		return "", false
	}
	parts := []string{t.text}
	for p.peek().text == "." {
		p.next()
		t = p.next()
		if t.kind == scanner.Ident || (allowWildcard && t.text == "*") {
			parts = append(parts, t.text)
			if t.text == "*" {
				break
			}
			continue
		}
		p.errorf(t, "<identifier> expected")
		return "", false
	}
	return strings.Join(parts, "."), true
}

// endStatement consumes an optional (Groovy) or required (Java) semicolon.
func (p *parser) endStatement() {
	if p.peek().text == ";" {
		p.next()
		return
	}
	if !p.groovy {
		p.errorf(p.peek(), "';' expected")
	}
}

func (p *parser) parseUnit() *unit {
	u := &unit{file: p.file, groovy: p.groovy}

	if p.peek().text == "package" {
		p.next()
		name, ok := p.qualifiedName(false)
		if !ok {
			return u
		}
		u.pkg = name
		p.endStatement()
	}

	for p.peek().text == "import" {
		p.next()
		if p.peek().text == "static" {
			// Static imports do not affect type resolution here.
			p.next()
		}
		name, ok := p.qualifiedName(true)
		if !ok {
			return u
		}
		u.imports = append(u.imports, name)
		p.endStatement()
	}

	for p.peek().kind != scanner.EOF && len(p.diags) == 0 {
		t := p.peek()
		switch {
		case t.text == ";":
			p.next()
		case t.text == "@":
			p.skipAnnotation()
		case modifiers[t.text] || typeKeywords[t.text]:
			if d := p.parseTypeDecl(); d != nil {
				u.types = append(u.types, d)
			}
		default:
			p.errorf(t, "class, interface, or enum expected")
		}
	}
	return u
}

func (p *parser) skipAnnotation() {
	p.next() // '@'
	if _, ok := p.qualifiedName(false); !ok {
		return
	}
	if p.peek().text == "(" {
		p.skipBalanced("(", ")")
	}
}

// skipBalanced consumes tokens from an opening delimiter to its match.
func (p *parser) skipBalanced(open, close string) {
	start := p.next()
	depth := 1
	for depth > 0 {
		t := p.next()
		switch t.text {
		case open:
			depth++
		case close:
			depth--
		}
		if t.kind == scanner.EOF {
			p.errorf(start, "reached end of file while parsing")
			return
		}
	}
}

func (p *parser) parseTypeDecl() *typeDecl {
	d := &typeDecl{fields: map[string]cty.Value{}}
	for modifiers[p.peek().text] {
		if p.next().text == "public" {
			d.public = true
		}
	}
	if p.groovy {
		// Groovy types are public unless stated otherwise.
		d.public = true
	}

	kw := p.next()
	if !typeKeywords[kw.text] {
		p.errorf(kw, "class, interface, or enum expected")
		return nil
	}
	name := p.next()
	if name.kind != scanner.Ident {
		p.errorf(name, "<identifier> expected")
		return nil
	}
	d.name = name.text
	d.line, d.column = name.pos.Line, name.pos.Column

	if p.peek().text == "<" {
		p.skipBalanced("<", ">")
	}
	for p.peek().text != "{" {
		t := p.peek()
		switch {
		case t.kind == scanner.EOF:
			p.errorf(t, "'{' expected")
			return nil
		case t.text == "extends" && kw.text == "class":
			p.next()
			super, ok := p.qualifiedName(false)
			if !ok {
				return nil
			}
			d.super = super
			if p.peek().text == "<" {
				p.skipBalanced("<", ">")
			}
		case t.text == "(" && kw.text == "record":
			p.skipBalanced("(", ")")
		default:
			// implements/permits lists and interface extends lists
			p.next()
		}
	}

	p.parseBody(d)
	return d
}

// parseBody reads members up to the closing brace of a type body and records
// static fields with literal initialisers.
func (p *parser) parseBody(d *typeDecl) {
	open := p.next() // '{'
	var member []token
	for {
		t := p.peek()
		switch {
		case t.kind == scanner.EOF:
			p.errorf(open, "reached end of file while parsing")
			return
		case t.text == "}":
			p.next()
			p.fieldFrom(d, member)
			return
		case t.text == "{":
			// Method body, initialiser or nested type: the member ends here.
			p.skipBalanced("{", "}")
			member = member[:0]
		case t.text == ";":
			p.next()
			p.fieldFrom(d, member)
			member = member[:0]
		default:
			p.next()
			if p.groovy && len(member) > 0 && t.pos.Line != member[len(member)-1].pos.Line {
				// Groovy statements end at a newline.
				p.fieldFrom(d, member)
				member = member[:0]
			}
			member = append(member, t)
		}
	}
}

// fieldFrom inspects a member declaration such as
// "public static int someValue = 12" and records the field.
func (p *parser) fieldFrom(d *typeDecl, member []token) {
	eq := -1
	static, public := false, p.groovy
	for i, t := range member {
		switch t.text {
		case "static":
			static = true
		case "public":
			public = true
		case "private", "protected":
			public = false
		case "=":
			if eq < 0 {
				eq = i
			}
		}
	}
	if !static || !public || eq < 1 || member[eq-1].kind != scanner.Ident {
		return
	}
	name := member[eq-1].text
	val, ok := literal(member[eq+1:])
	if !ok {
		return
	}
	d.fields[name] = val
}

// literal converts an initialiser made of a single literal into a value.
func literal(toks []token) (cty.Value, bool) {
	if n := len(toks); n > 1 && toks[n-1].kind == scanner.Ident && numericSuffixes[toks[n-1].text] {
		toks = toks[:n-1]
	}
	negative := false
	if len(toks) == 2 && toks[0].text == "-" {
		negative = true
		toks = toks[1:]
	}
	if len(toks) != 1 {
		return cty.NilVal, false
	}
	t := toks[0]
	switch t.kind {
	case scanner.Int, scanner.Float:
		text := strings.ReplaceAll(t.text, "_", "")
		if negative {
			text = "-" + text
		}
		v, err := cty.ParseNumberVal(text)
		if err != nil {
			return cty.NilVal, false
		}
		return v, true
	case scanner.String, scanner.RawString, scanner.Char:
		if negative {
			return cty.NilVal, false
		}
		s, err := strconv.Unquote(t.text)
		if err != nil {
			s = strings.Trim(t.text, "\"'`")
		}
		return cty.StringVal(s), true
	case scanner.Ident:
		if negative {
			return cty.NilVal, false
		}
		switch t.text {
		case "true":
			return cty.True, true
		case "false":
			return cty.False, true
		}
	}
	return cty.NilVal, false
}

// expectedFileName returns the file name a public Java type must live in.
func expectedFileName(file, typeName string) (string, bool) {
	if strings.HasSuffix(file, ".groovy") {
		return "", true
	}
	want := typeName + ".java"
	return want, filepath.Base(file) == want
}
