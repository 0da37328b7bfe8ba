// Package errors provides the classified errors used across cachebuild.
//
// Every failure that reaches the CLI carries an ErrorCategory, which selects the
// process exit code, a severity, structured context and, where the operator can
// fix the cause, a hint:
//
//	err := errors.MissingEnvironment("COVFILE").
//		WithContext("mode", "writeback").
//		Build()
//
// CLIErrorAdapter turns these into a one-line message, an optional hint line and
// an exit code.
package errors
