package script

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// findUniqueBlock searches a slice of blocks for all blocks of a given type.
// It returns a diagnostic error if more than one block of that type is found.
// If no block is found, it returns nil.
func findUniqueBlock(blocks hclsyntax.Blocks, name string) (*hclsyntax.Block, hcl.Diagnostics) {
	var found *hclsyntax.Block
	var diags hcl.Diagnostics

	for _, block := range blocks {
		if block.Type == name {
			if found != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate \"" + name + "\" block",
					Detail:   "Only one \"" + name + "\" block is allowed.",
					Subject:  block.DefRange().Ptr(),
				})
			}
			found = block
		}
	}

	return found, diags
}

// unexpectedBlocks reports every block whose type is not in allowed.
func unexpectedBlocks(blocks hclsyntax.Blocks, where string, allowed ...string) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, block := range blocks {
		ok := false
		for _, a := range allowed {
			if block.Type == a {
				ok = true
				break
			}
		}
		if !ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unsupported block type",
				Detail:   "Blocks of type \"" + block.Type + "\" are not expected in " + where + ".",
				Subject:  block.TypeRange.Ptr(),
			})
		}
	}
	return diags
}

// sortedAttributes returns attributes in source order.
func sortedAttributes(attrs hclsyntax.Attributes, skip ...string) []*hclsyntax.Attribute {
	out := make([]*hclsyntax.Attribute, 0, len(attrs))
outer:
	for name, attr := range attrs {
		for _, s := range skip {
			if name == s {
				continue outer
			}
		}
		out = append(out, attr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SrcRange.Start.Byte < out[j].SrcRange.Start.Byte })
	return out
}

// referencedRoots returns the root names of every variable an expression
// refers to, sorted.
func referencedRoots(expr hcl.Expression) []string {
	set := make(map[string]struct{})
	for _, traversal := range expr.Variables() {
		set[traversal.RootName()] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// calledFunctions walks the syntax tree and collects every function call,
// with the range of its first occurrence.
func calledFunctions(expr hclsyntax.Expression, functions map[string]hcl.Range) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		if _, seen := functions[e.Name]; !seen {
			functions[e.Name] = e.NameRange
		}
		for _, arg := range e.Args {
			calledFunctions(arg, functions)
		}
	case *hclsyntax.BinaryOpExpr:
		calledFunctions(e.LHS, functions)
		calledFunctions(e.RHS, functions)
	case *hclsyntax.ConditionalExpr:
		calledFunctions(e.Condition, functions)
		calledFunctions(e.TrueResult, functions)
		calledFunctions(e.FalseResult, functions)
	case *hclsyntax.UnaryOpExpr:
		calledFunctions(e.Val, functions)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			calledFunctions(part, functions)
		}
	case *hclsyntax.TemplateWrapExpr:
		calledFunctions(e.Wrapped, functions)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			calledFunctions(item, functions)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			calledFunctions(item.KeyExpr, functions)
			calledFunctions(item.ValueExpr, functions)
		}
	case *hclsyntax.ForExpr:
		calledFunctions(e.CollExpr, functions)
		calledFunctions(e.KeyExpr, functions)
		calledFunctions(e.ValExpr, functions)
		calledFunctions(e.CondExpr, functions)
	case *hclsyntax.IndexExpr:
		calledFunctions(e.Collection, functions)
		calledFunctions(e.Key, functions)
	case *hclsyntax.SplatExpr:
		calledFunctions(e.Source, functions)
		calledFunctions(e.Each, functions)
	case *hclsyntax.ParenthesesExpr:
		calledFunctions(e.Expression, functions)
	case *hclsyntax.RelativeTraversalExpr:
		calledFunctions(e.Source, functions)
	}
}
