// Package logx wraps zerolog for cmdsched.
//
// Console output is human readable with a short file:line caller. File
// output is JSON lines. Levels and outputs can change at runtime through
// Service.Apply without re-creating loggers.
package logx
