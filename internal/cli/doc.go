// Package cli is responsible for parsing command-line arguments and flags.
// It translates user input into an app.Config struct, acting as the bridge
// between the command-line interface and the core application logic.
package cli
