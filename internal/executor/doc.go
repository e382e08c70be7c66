// Package executor runs one directive command as a child process and turns
// whatever happens into exactly one recorded Outcome.
package executor
