// Package compiler defines the compilation collaborator used to turn build
// sources into classes. Out-of-process compiler daemons implement Compiler;
// SourceCompiler is the in-process implementation.
package compiler

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/buildcp/internal/classfile"
)

// ClassPath is the set of already compiled classes sources may refer to.
type ClassPath interface {
	Class(fqn string) (*classfile.Class, bool)
}

// Request describes one compilation.
type Request struct {
	Sources   []string // source files
	ClassPath ClassPath
}

// Result holds the classes produced by a compilation.
type Result struct {
	Classes []*classfile.Class
}

// Compiler compiles sources. Implementations must honour cancellation of ctx.
type Compiler interface {
	Compile(ctx context.Context, req Request) (*Result, error)
}

// Diagnostic is a single compilation error.
type Diagnostic struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
}

// Diagnostics is the error returned when sources fail to compile.
type Diagnostics []*Diagnostic

// Error implements the error interface.
func (ds Diagnostics) Error() string {
	msgs := make([]string, len(ds))
	for i, d := range ds {
		msgs[i] = d.Error()
	}
	n := len(ds)
	if n == 1 {
		return msgs[0]
	}
	return fmt.Sprintf("%s\n%d errors", strings.Join(msgs, "\n"), n)
}

// File returns the source file of the first diagnostic.
func (ds Diagnostics) File() string {
	if len(ds) == 0 {
		return ""
	}
	return ds[0].File
}
