// Package app contains the invocation lifecycle. It defines the App struct,
// its configuration and the steps of one build invocation: loading the
// project tree, building the build sources, propagating classpaths down the
// hierarchy and running the requested tasks. It is decoupled from any
// specific entrypoint like a CLI.
package app
