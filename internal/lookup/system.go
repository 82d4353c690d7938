package lookup

import (
	"sync"

	"github.com/vk/buildcp/internal/classfile"
	"github.com/vk/buildcp/internal/classpath"
	"github.com/zclconf/go-cty/cty"
)

const object = "java.lang.Object"

var (
	systemOnce  sync.Once
	systemIndex *classfile.Index
)

// System returns the platform classes every build script can see.
func System() *classfile.Index {
	systemOnce.Do(func() {
		systemIndex = classfile.NewIndex(classpath.SystemPath, []*classfile.Class{
			{Name: object},
			{Name: "java.lang.String", Super: object},
			{Name: "java.lang.Number", Super: object},
			{Name: "java.lang.Integer", Super: "java.lang.Number", Fields: map[string]cty.Value{
				"MAX_VALUE": cty.NumberIntVal(2147483647),
				"MIN_VALUE": cty.NumberIntVal(-2147483648),
			}},
			{Name: "java.lang.Boolean", Super: object},
			{Name: "java.lang.Math", Super: object, Fields: map[string]cty.Value{
				"PI": cty.NumberFloatVal(3.141592653589793),
			}},
			{Name: "java.lang.Runnable"},
			{Name: "java.util.AbstractCollection", Super: object},
			{Name: "java.util.AbstractList", Super: "java.util.AbstractCollection"},
			{Name: "java.util.ArrayList", Super: "java.util.AbstractList"},
			{Name: "java.util.LinkedList", Super: "java.util.AbstractList"},
			{Name: "java.util.List"},
			{Name: "java.util.Map"},
			{Name: "java.util.AbstractMap", Super: object},
			{Name: "java.util.HashMap", Super: "java.util.AbstractMap"},
			{Name: "java.util.LinkedHashMap", Super: "java.util.HashMap"},
			{Name: "java.util.Set"},
			{Name: "java.util.HashSet", Super: object},
			{Name: "groovy.lang.Closure", Super: object},
			{Name: "groovy.lang.GroovyObject"},
			{Name: "org.gradle.api.Project"},
			{Name: "org.gradle.api.Task"},
			{Name: "org.gradle.api.DefaultTask", Super: object},
		})
	})
	return systemIndex
}
