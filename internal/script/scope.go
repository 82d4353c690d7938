package script

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/buildcp/internal/classfile"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// instanceType is the value new() produces.
var instanceType = cty.Object(map[string]cty.Type{"class": cty.String})

// ProjectInfo is what a script can observe about its project.
type ProjectInfo struct {
	Name string
	Path string // e.g. ":" or ":child"
	Dir  string
}

func (p ProjectInfo) value() cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"name": cty.StringVal(p.Name),
		"path": cty.StringVal(p.Path),
		"dir":  cty.StringVal(p.Dir),
	})
}

// scope is the evaluation environment of one pass over a script: the class
// resolver, the variables defined so far and the script functions.
type scope struct {
	resolver  *resolver
	project   ProjectInfo
	out       io.Writer
	vars      map[string]cty.Value
	functions map[string]function.Function
}

func newScope(r *resolver, project ProjectInfo, out io.Writer) *scope {
	if out == nil {
		out = io.Discard
	}
	s := &scope{
		resolver: r,
		project:  project,
		out:      out,
		vars:     map[string]cty.Value{"project": project.value()},
	}
	s.functions = map[string]function.Function{
		"new":             s.newFunc(),
		"class":           s.classFunc(),
		"field":           s.fieldFunc(),
		"package_classes": s.packageClassesFunc(),
		"file":            s.fileFunc(),
		"println":         s.printlnFunc(),
		"upper":           stdlib.UpperFunc,
		"lower":           stdlib.LowerFunc,
		"join":            stdlib.JoinFunc,
		"concat":          stdlib.ConcatFunc,
		"length":          stdlib.LengthFunc,
		"format":          stdlib.FormatFunc,
	}
	return s
}

func (s *scope) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{Variables: s.vars, Functions: s.functions}
}

// importStatics defines a variable for every statically imported field
// whose class is visible. Imports of classes that are not visible are
// skipped; a visible class without the named field is an error.
func (s *scope) importStatics() error {
	for _, imp := range s.resolver.imports.Static {
		cls, ok := s.resolver.resolve(imp.Class)
		if !ok {
			continue
		}
		if imp.Member == "*" {
			for name, v := range s.resolver.staticFields(cls) {
				s.define(name, v)
			}
			continue
		}
		owner, ok := s.resolver.field(cls, imp.Member)
		if !ok {
			return fmt.Errorf("static import %s.%s: no such field", imp.Class, imp.Member)
		}
		s.define(imp.Member, owner.Fields[imp.Member])
	}
	return nil
}

func (s *scope) define(name string, v cty.Value) {
	if name == "project" {
		return
	}
	s.vars[name] = v
}

func (s *scope) mustResolve(name string) (*classfile.Class, error) {
	c, ok := s.resolver.resolve(name)
	if !ok {
		return nil, fmt.Errorf("unable to resolve class %s", name)
	}
	return c, nil
}

func (s *scope) newFunc() function.Function {
	return function.New(&function.Spec{
		Description: "Creates an instance of a class.",
		Params:      []function.Parameter{{Name: "class", Type: cty.String}},
		Type:        function.StaticReturnType(instanceType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			c, err := s.mustResolve(args[0].AsString())
			if err != nil {
				return cty.NilVal, err
			}
			return cty.ObjectVal(map[string]cty.Value{"class": cty.StringVal(c.Name)}), nil
		},
	})
}

func (s *scope) classFunc() function.Function {
	return function.New(&function.Spec{
		Description: "Returns the fully qualified name of a class.",
		Params:      []function.Parameter{{Name: "class", Type: cty.String}},
		Type:        function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			c, err := s.mustResolve(args[0].AsString())
			if err != nil {
				return cty.NilVal, err
			}
			return cty.StringVal(c.Name), nil
		},
	})
}

func (s *scope) fieldFunc() function.Function {
	return function.New(&function.Spec{
		Description: "Reads a static field of a class.",
		Params: []function.Parameter{
			{Name: "class", Type: cty.String},
			{Name: "field", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.DynamicPseudoType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			c, err := s.mustResolve(args[0].AsString())
			if err != nil {
				return cty.NilVal, err
			}
			name := args[1].AsString()
			owner, ok := s.resolver.field(c, name)
			if !ok {
				return cty.NilVal, fmt.Errorf("class %s has no static field %s", c.Name, name)
			}
			return owner.Fields[name], nil
		},
	})
}

func (s *scope) packageClassesFunc() function.Function {
	return function.New(&function.Spec{
		Description: "Lists the simple names of the classes visible in a package.",
		Params:      []function.Parameter{{Name: "package", Type: cty.String}},
		Type:        function.StaticReturnType(cty.List(cty.String)),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			names := s.resolver.packageClasses(args[0].AsString())
			if len(names) == 0 {
				return cty.ListValEmpty(cty.String), nil
			}
			vals := make([]cty.Value, len(names))
			for i, n := range names {
				vals[i] = cty.StringVal(n)
			}
			return cty.ListVal(vals), nil
		},
	})
}

func (s *scope) fileFunc() function.Function {
	return function.New(&function.Spec{
		Description: "Resolves a path relative to the project directory.",
		Params:      []function.Parameter{{Name: "path", Type: cty.String}},
		Type:        function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.StringVal(s.path(args[0].AsString())), nil
		},
	})
}

// path makes p absolute against the project directory.
func (s *scope) path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.project.Dir, filepath.FromSlash(p))
}

func (s *scope) printlnFunc() function.Function {
	return function.New(&function.Spec{
		Description: "Prints a value followed by a newline.",
		Params:      []function.Parameter{{Name: "value", Type: cty.DynamicPseudoType, AllowNull: true}},
		Type:        function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			text, err := render(args[0])
			if err != nil {
				return cty.NilVal, err
			}
			if _, err := fmt.Fprintln(s.out, text); err != nil {
				return cty.NilVal, err
			}
			return cty.StringVal(text), nil
		},
	})
}

// render formats a value the way println shows it.
func render(v cty.Value) (string, error) {
	switch {
	case v.IsNull():
		return "null", nil
	case !v.IsKnown():
		return "(unknown)", nil
	case v.Type() == cty.String:
		return v.AsString(), nil
	case v.Type() == cty.Number:
		return v.AsBigFloat().Text('f', -1), nil
	case v.Type() == cty.Bool:
		return strconv.FormatBool(v.True()), nil
	case v.Type().Equals(instanceType):
		return v.GetAttr("class").AsString() + "@instance", nil
	}
	data, err := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
