// Package core runs the external commands a pipeline phase is made of.
//
// A Command is an argument vector plus the metadata the orchestrator needs to
// account for it: a human-readable description, a working directory, the
// explicit environment handed to the child, and an optional log name.
//
// # Design Principles
//
//  1. No shell. Commands are executed from their argv, so quoting and
//     redirection are never interpreted.
//  2. One log per invocation. Standard output and standard error of the child
//     are written to a single file under the run-log directory whose name is
//     unique within the run.
//  3. Failure is a value. A non-zero exit status is returned in Result, not as
//     an error; errors are reserved for commands that could not be started or
//     were interrupted.
package core
