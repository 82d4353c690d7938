package script

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/buildcp/internal/dag"
	"github.com/zclconf/go-cty/cty"
)

// Property is an evaluated top-level attribute of a script.
type Property struct {
	Name  string
	Value cty.Value
}

// evalProperties evaluates attributes so that every attribute is evaluated
// after the attributes it refers to; unrelated attributes keep source order.
// Each value becomes a variable of the scope.
func evalProperties(attrs []*hclsyntax.Attribute, sc *scope) ([]Property, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	byName := make(map[string]*hclsyntax.Attribute, len(attrs))
	g := dag.New()
	for _, a := range attrs {
		if a.Name == "project" {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Reserved name",
				Detail:   "\"project\" is provided by the build and cannot be assigned.",
				Subject:  a.NameRange.Ptr(),
			})
			continue
		}
		byName[a.Name] = a
		g.AddNode(a.Name)
	}
	for _, a := range attrs {
		if _, ok := byName[a.Name]; !ok {
			continue
		}
		for _, root := range referencedRoots(a.Expr) {
			if _, isProperty := byName[root]; !isProperty {
				continue
			}
			if err := g.AddEdge(root, a.Name); err != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Self-referencing property",
					Detail:   fmt.Sprintf("Property %q refers to itself.", a.Name),
					Subject:  a.SrcRange.Ptr(),
				})
			}
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Property cycle",
			Detail:   err.Error(),
		}}
	}

	props := make([]Property, 0, len(order))
	for _, name := range order {
		a := byName[name]
		v, valDiags := a.Expr.Value(sc.evalContext())
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			return nil, diags
		}
		sc.define(name, v)
		props = append(props, Property{Name: name, Value: v})
	}
	return props, diags
}
