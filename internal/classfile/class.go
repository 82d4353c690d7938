// Package classfile defines class descriptors and the containers that hold
// them: jar archives and class directories. A class file is the cty JSON
// encoding of a descriptor stored at "<package path>/<Simple>.class".
package classfile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Extension is the file extension of class entries.
const Extension = ".class"

// Class describes a compiled class as far as build scripts can observe it:
// its name, its superclass and its public static fields.
type Class struct {
	Name   string // fully qualified, e.g. "org.gradle.test.ImportedClass"
	Super  string // fully qualified; empty for java.lang.Object itself
	Fields map[string]cty.Value
}

// Package returns the package part of the class name; empty for the default package.
func (c *Class) Package() string {
	return PackageOf(c.Name)
}

// SimpleName returns the unqualified class name.
func (c *Class) SimpleName() string {
	return SimpleNameOf(c.Name)
}

// Field returns a public static field value.
func (c *Class) Field(name string) (cty.Value, bool) {
	v, ok := c.Fields[name]
	return v, ok
}

// FieldNames returns the static field names in sorted order.
func (c *Class) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for n := range c.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PackageOf returns the package of a fully qualified name.
func PackageOf(fqn string) string {
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[:i]
	}
	return ""
}

// SimpleNameOf returns the last segment of a fully qualified name.
func SimpleNameOf(fqn string) string {
	return fqn[strings.LastIndexByte(fqn, '.')+1:]
}

// EntryName returns the archive entry name of a class.
func EntryName(fqn string) string {
	return strings.ReplaceAll(fqn, ".", "/") + Extension
}

// NameFromEntry converts an archive entry name back into a class name.
func NameFromEntry(entry string) (string, bool) {
	entry = strings.ReplaceAll(entry, "\\", "/")
	if !strings.HasSuffix(entry, Extension) || strings.HasPrefix(entry, "META-INF/") {
		return "", false
	}
	return strings.ReplaceAll(strings.TrimSuffix(entry, Extension), "/", "."), true
}

// Encode serialises a class descriptor.
func Encode(c *Class) ([]byte, error) {
	fields := cty.EmptyObjectVal
	if len(c.Fields) > 0 {
		fields = cty.ObjectVal(c.Fields)
	}
	val := cty.ObjectVal(map[string]cty.Value{
		"name":   cty.StringVal(c.Name),
		"super":  cty.StringVal(c.Super),
		"fields": fields,
	})
	data, err := ctyjson.Marshal(val, cty.DynamicPseudoType)
	if err != nil {
		return nil, fmt.Errorf("encoding class %s: %w", c.Name, err)
	}
	return data, nil
}

// Decode parses a class descriptor.
func Decode(data []byte) (*Class, error) {
	val, err := ctyjson.Unmarshal(data, cty.DynamicPseudoType)
	if err != nil {
		return nil, fmt.Errorf("decoding class descriptor: %w", err)
	}
	ty := val.Type()
	if !ty.IsObjectType() || !ty.HasAttribute("name") || !ty.HasAttribute("super") || !ty.HasAttribute("fields") {
		return nil, fmt.Errorf("decoding class descriptor: unexpected shape %s", ty.FriendlyName())
	}
	name, super := val.GetAttr("name"), val.GetAttr("super")
	if name.Type() != cty.String || super.Type() != cty.String || name.IsNull() || super.IsNull() {
		return nil, fmt.Errorf("decoding class descriptor: name and super must be strings")
	}
	c := &Class{
		Name:  name.AsString(),
		Super: super.AsString(),
	}
	fields := val.GetAttr("fields")
	if !fields.Type().IsObjectType() {
		return nil, fmt.Errorf("decoding class %s: fields must be an object", c.Name)
	}
	if m := fields.AsValueMap(); len(m) > 0 {
		c.Fields = m
	}
	return c, nil
}
