// Package logx wraps zerolog behind a small Field-based API so callers don't
// depend on zerolog types directly. The Service supports swapping sinks and
// levels at runtime; Loggers created from it stay live across Apply() calls.
package logx
