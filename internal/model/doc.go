// Package model defines the domain types and value objects for the
// engine-devenv CLI.
//
// This package contains pure data structures with no external dependencies.
// LaunchConfig and MountPaths live for a single invocation: they are built
// from defaults, the optional config file and command-line flags, and are
// discarded at process exit. Nothing here is persisted.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
