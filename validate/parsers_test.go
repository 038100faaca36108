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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRustStyleOutput(t *testing.T) {
	sample := `
error[E0425]: cannot find function ` + "`missing_helper`" + ` in this scope
 --> src/lib.rs:2:5
  |
2 |     missing_helper(name)
  |     ^^^^^^^^^^^^^^ not found in this scope
help: consider importing ` + "`missing_helper`" + `
`

	diags := parseRustStyleOutput("cargo-check", sample)
	require.Len(t, diags, 1)

	d := diags[0]
	assert.Equal(t, LevelError, d.Level)
	assert.Equal(t, "src/lib.rs", d.File)
	assert.Equal(t, 2, d.Line)
	assert.Equal(t, 4, d.Column) // rustc's 1-based column 5
	assert.Equal(t, "E0425", d.Code)
	assert.Contains(t, d.Message, "missing_helper")
	assert.Contains(t, d.Note, "consider importing")
	assert.Equal(t, "https://doc.rust-lang.org/error-index.html#E0425", d.Remediation)
}

func TestParseRustStyleOutputWarningOnly(t *testing.T) {
	sample := `warning: unused variable: ` + "`x`" + `
 --> src/main.rs:3:9
`

	diags := parseRustStyleOutput("cargo-check", sample)
	require.Len(t, diags, 1)
	assert.Equal(t, LevelWarning, diags[0].Level)
	assert.False(t, HasErrors(diags))
}

func TestParsePythonOutput(t *testing.T) {
	output := "  File \"test.py\", line 1\n    def foo(\n           ^\nSyntaxError: '(' was never closed\n"
	diags := parsePythonOutput(output, "test.py")
	require.Len(t, diags, 1)
	assert.Equal(t, 1, diags[0].Line)
	assert.Equal(t, "'(' was never closed", diags[0].Message)
	assert.Equal(t, LevelError, diags[0].Level)
}

func TestParsePythonOutputFallback(t *testing.T) {
	diags := parsePythonOutput("something unexpected happened\n", "test.py")
	require.Len(t, diags, 1)
	assert.Equal(t, "something unexpected happened", diags[0].Message)
}

func TestParseGCCOutput(t *testing.T) {
	output := "test.c:3:5: error: expected ';' before '}'\ntest.c:5:10: warning: unused variable 'x'\n"
	diags := parseGCCOutput("gcc", output)
	require.Len(t, diags, 2)

	assert.Equal(t, LevelError, diags[0].Level)
	assert.Equal(t, "test.c", diags[0].File)
	assert.Equal(t, 3, diags[0].Line)
	assert.Equal(t, 4, diags[0].Column) // gcc's 1-based column 5
	assert.Contains(t, diags[0].Message, "expected ';'")

	assert.Equal(t, LevelWarning, diags[1].Level)
	assert.Equal(t, 5, diags[1].Line)
}

func TestParseJavacOutput(t *testing.T) {
	output := "Main.java:3: error: class, interface, or enum expected\n"
	diags := parseJavacOutput(output, "Main.java")
	require.Len(t, diags, 1)
	assert.Equal(t, 3, diags[0].Line)
	assert.Contains(t, diags[0].Message, "class, interface, or enum expected")
}

func TestParseNodeOutput(t *testing.T) {
	output := "test.js:2\nconst x = ;\n          ^\n\nSyntaxError: Unexpected token ';'\n"
	diags := parseNodeOutput(output, "test.js")
	require.Len(t, diags, 1)
	assert.Equal(t, 2, diags[0].Line)
	assert.Contains(t, diags[0].Message, "Unexpected token")
}

func TestParseTscOutput(t *testing.T) {
	output := "test.ts(2,5): error TS1002: Unterminated string literal\n"
	diags := parseTscOutput(output, "test.ts")
	require.Len(t, diags, 1)
	assert.Equal(t, 2, diags[0].Line)
	assert.Equal(t, 4, diags[0].Column) // tsc's 1-based column 5
	assert.Equal(t, "TS1002", diags[0].Code)
	assert.Contains(t, diags[0].Message, "Unterminated string literal")
	assert.Equal(t, "https://www.typescriptlang.org/errors/TS1002", diags[0].Remediation)
}

func TestRemediationLink(t *testing.T) {
	assert.Equal(t, "https://doc.rust-lang.org/error-index.html#E0308", RemediationLink("E0308"))
	assert.Equal(t, "https://www.typescriptlang.org/errors/TS2322", RemediationLink("TS2322"))
	assert.Empty(t, RemediationLink("GCC123"))
	assert.Empty(t, RemediationLink("E03"))
}

func TestParseAnalyzerMode(t *testing.T) {
	assert.Equal(t, AnalyzerOff, ParseAnalyzerMode("off"))
	assert.Equal(t, AnalyzerOff, ParseAnalyzerMode(""))
	assert.Equal(t, AnalyzerPath, ParseAnalyzerMode("auto"))
	assert.Equal(t, AnalyzerExplicit("/usr/bin/rust-analyzer"), ParseAnalyzerMode("/usr/bin/rust-analyzer"))
}
