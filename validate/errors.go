// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import "fmt"

// CargoCheckError is the Rust semantic gate failure.
type CargoCheckError struct {
	// Workspace is the crate root cargo ran in.
	Workspace string

	// Output is the raw combined stdout+stderr.
	Output string

	// Diags are the normalized diagnostics parsed from Output.
	Diags []Diagnostic
}

func (e *CargoCheckError) Error() string {
	return fmt.Sprintf("cargo check failed in workspace %q", e.Workspace)
}

// ErrorKind returns the stable kind tag for CLI payloads.
func (e *CargoCheckError) ErrorKind() string { return "CargoCheckFailed" }

// FilePath returns the workspace the error refers to.
func (e *CargoCheckError) FilePath() string { return e.Workspace }

// Diagnostics returns the normalized compiler output, falling back to
// one error-level record holding the raw output.
func (e *CargoCheckError) Diagnostics() []Diagnostic {
	if len(e.Diags) > 0 {
		return e.Diags
	}
	d := NewDiagnostic("cargo-check", LevelError, e.Output)
	d.File = e.Workspace
	return []Diagnostic{d}
}

// CompilerValidationError is the semantic gate failure for non-Rust
// languages.
type CompilerValidationError struct {
	// File is the file that failed validation.
	File string

	// Language names the failing language.
	Language string

	// Diags are the normalized compiler diagnostics.
	Diags []Diagnostic
}

func (e *CompilerValidationError) Error() string {
	return fmt.Sprintf("compiler validation failed for %s in file %q", e.Language, e.File)
}

// ErrorKind returns the stable kind tag for CLI payloads.
func (e *CompilerValidationError) ErrorKind() string { return "CompilerValidationFailed" }

// FilePath returns the file the error refers to.
func (e *CompilerValidationError) FilePath() string { return e.File }

// Diagnostics returns the normalized compiler output.
func (e *CompilerValidationError) Diagnostics() []Diagnostic { return e.Diags }

// AnalyzerNotAvailableError reports a rust-analyzer binary that could
// not be located.
type AnalyzerNotAvailableError struct {
	// Mode describes the requested analyzer mode.
	Mode string
}

func (e *AnalyzerNotAvailableError) Error() string {
	return fmt.Sprintf("rust-analyzer not found: %s", e.Mode)
}

// ErrorKind returns the stable kind tag for CLI payloads.
func (e *AnalyzerNotAvailableError) ErrorKind() string { return "AnalyzerNotAvailable" }

// AnalyzerFailedError reports analyzer output; any output at all fails
// the gate.
type AnalyzerFailedError struct {
	// Output is the raw analyzer text.
	Output string

	// Diags are diagnostics parsed from Output.
	Diags []Diagnostic
}

func (e *AnalyzerFailedError) Error() string {
	return "rust-analyzer reported diagnostics"
}

// ErrorKind returns the stable kind tag for CLI payloads.
func (e *AnalyzerFailedError) ErrorKind() string { return "AnalyzerFailed" }

// Diagnostics returns parsed analyzer output, falling back to one
// error-level record holding the raw text.
func (e *AnalyzerFailedError) Diagnostics() []Diagnostic {
	if len(e.Diags) > 0 {
		return e.Diags
	}
	return []Diagnostic{NewDiagnostic("rust-analyzer", LevelError, e.Output)}
}
