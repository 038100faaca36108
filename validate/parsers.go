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
	"strconv"
	"strings"
)

// parseRustStyleOutput parses rustc/cargo/rust-analyzer style output:
//
//	error[E0308]: mismatched types
//	 --> src/lib.rs:2:5
//	  |
//	help: consider ...
//
// Headers carry level/code/message; the following --> line carries the
// location; note/help lines attach to the last diagnostic.
func parseRustStyleOutput(tool, output string) []Diagnostic {
	var diags []Diagnostic
	var pending *Diagnostic

	flush := func() {
		if pending != nil {
			diags = append(diags, *pending)
			pending = nil
		}
	}

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if d, ok := parseRustHeader(tool, line); ok {
			flush()
			pending = &d
			continue
		}

		if file, lineNum, col, ok := parseRustLocation(line); ok {
			if pending != nil {
				pending.File = file
				pending.Line = lineNum
				// rustc columns are 1-based; ours are 0-based bytes.
				if col > 0 {
					pending.Column = col - 1
				}
				flush()
			}
			continue
		}

		if note, ok := parseLabelled(line, "note"); ok {
			attachNote(diags, pending, note)
			continue
		}
		if help, ok := parseLabelled(line, "help"); ok {
			attachNote(diags, pending, help)
			continue
		}
	}

	flush()

	for i := range diags {
		if diags[i].Code != "" {
			diags[i].Remediation = RemediationLink(diags[i].Code)
		}
	}

	return diags
}

func attachNote(diags []Diagnostic, pending *Diagnostic, text string) {
	target := pending
	if target == nil {
		if len(diags) == 0 {
			return
		}
		target = &diags[len(diags)-1]
	}
	if target.Note == "" {
		target.Note = text
	} else {
		target.Note += "\n" + text
	}
}

// parseRustHeader parses "error[E0308]: msg", "error: msg",
// "warning[...]: msg", or "warning: msg".
func parseRustHeader(tool, line string) (Diagnostic, bool) {
	for _, level := range []Level{LevelError, LevelWarning} {
		prefix := string(level)
		rest, found := strings.CutPrefix(line, prefix)
		if !found {
			continue
		}
		switch {
		case strings.HasPrefix(rest, "["):
			end := strings.Index(rest, "]:")
			if end < 0 {
				return Diagnostic{}, false
			}
			d := NewDiagnostic(tool, level, strings.TrimSpace(rest[end+2:]))
			d.Code = rest[1:end]
			return d, true
		case strings.HasPrefix(rest, ":"):
			return NewDiagnostic(tool, level, strings.TrimSpace(rest[1:])), true
		}
	}
	return Diagnostic{}, false
}

// parseRustLocation parses "--> file.rs:line:column".
func parseRustLocation(line string) (file string, lineNum, col int, ok bool) {
	rest, found := strings.CutPrefix(line, "-->")
	if !found {
		return "", 0, 0, false
	}
	rest = strings.TrimSpace(rest)

	lastColon := strings.LastIndex(rest, ":")
	if lastColon < 0 {
		return "", 0, 0, false
	}
	col, err := strconv.Atoi(rest[lastColon+1:])
	if err != nil {
		return "", 0, 0, false
	}

	rest = rest[:lastColon]
	lastColon = strings.LastIndex(rest, ":")
	if lastColon < 0 {
		return "", 0, 0, false
	}
	lineNum, err = strconv.Atoi(rest[lastColon+1:])
	if err != nil {
		return "", 0, 0, false
	}

	return rest[:lastColon], lineNum, col, true
}

// parseLabelled recognizes "note: ..." / "= note: ..." style lines,
// tolerating the gutter pipe rustc prints.
func parseLabelled(line, label string) (string, bool) {
	trimmed := strings.TrimSpace(strings.TrimLeft(line, "|"))
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimPrefix(trimmed, "= ")

	rest, found := strings.CutPrefix(trimmed, label)
	if !found {
		return "", false
	}
	rest = strings.TrimPrefix(rest, ":")
	return strings.TrimSpace(rest), true
}

// parsePythonOutput parses py_compile output:
//
//	File "test.py", line 1
//	  def foo(
//	         ^
//	SyntaxError: '(' was never closed
func parsePythonOutput(output, file string) []Diagnostic {
	var diags []Diagnostic
	lines := strings.Split(output, "\n")

	for i, line := range lines {
		if !strings.Contains(line, `File "`) || !strings.Contains(line, ", line ") {
			continue
		}
		idx := strings.LastIndex(line, ", line ")
		lineStr := strings.TrimRight(strings.TrimSpace(line[idx+len(", line "):]), `"`)
		lineNum, err := strconv.Atoi(lineStr)
		if err != nil {
			continue
		}

		// Look ahead for the SyntaxError message.
		for j := i + 1; j < len(lines) && j <= i+5; j++ {
			if msgIdx := strings.Index(lines[j], "SyntaxError: "); msgIdx >= 0 {
				d := NewDiagnostic("py_compile", LevelError, strings.TrimSpace(lines[j][msgIdx+len("SyntaxError: "):]))
				d.File = file
				d.Line = lineNum
				diags = append(diags, d)
				break
			}
		}
	}

	if len(diags) == 0 {
		// Single-line "SyntaxError: msg" form, then whole-output fallback.
		for _, line := range lines {
			if msgIdx := strings.Index(line, "SyntaxError: "); msgIdx >= 0 {
				d := NewDiagnostic("py_compile", LevelError, strings.TrimSpace(line[msgIdx+len("SyntaxError: "):]))
				d.File = file
				diags = append(diags, d)
				break
			}
		}
	}

	if len(diags) == 0 && strings.TrimSpace(output) != "" {
		d := NewDiagnostic("py_compile", LevelError, strings.TrimSpace(output))
		d.File = file
		diags = append(diags, d)
	}

	return diags
}

// parseGCCOutput parses gcc/g++ lines of the form
//
//	file:line:col: error: message
//	file:line:col: warning: message
func parseGCCOutput(tool, output string) []Diagnostic {
	var diags []Diagnostic

	for _, line := range strings.Split(output, "\n") {
		var level Level
		switch {
		case strings.Contains(line, ": error: "):
			level = LevelError
		case strings.Contains(line, ": warning: "):
			level = LevelWarning
		default:
			continue
		}

		parts := strings.SplitN(line, ":", 4)
		if len(parts) < 4 {
			continue
		}
		lineNum, err1 := strconv.Atoi(strings.TrimSpace(parts[1]))
		col, err2 := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err1 != nil || err2 != nil {
			continue
		}

		msg := strings.TrimSpace(parts[3])
		msg = strings.TrimPrefix(msg, string(level)+": ")

		d := NewDiagnostic(tool, level, msg)
		d.File = strings.TrimSpace(parts[0])
		d.Line = lineNum
		// gcc columns are 1-based; ours are 0-based bytes.
		if col > 0 {
			d.Column = col - 1
		}
		diags = append(diags, d)
	}

	return diags
}

// parseJavacOutput parses javac lines of the form
//
//	Main.java:3: error: class, interface, or enum expected
func parseJavacOutput(output, file string) []Diagnostic {
	var diags []Diagnostic

	for _, line := range strings.Split(output, "\n") {
		errIdx := strings.Index(line, ": error: ")
		level := LevelError
		if errIdx < 0 {
			errIdx = strings.Index(line, ": warning: ")
			level = LevelWarning
		}
		if errIdx < 0 {
			continue
		}

		head := line[:errIdx]
		lastColon := strings.LastIndex(head, ":")
		if lastColon < 0 {
			continue
		}
		lineNum, err := strconv.Atoi(strings.TrimSpace(head[lastColon+1:]))
		if err != nil {
			continue
		}

		msg := line[errIdx:]
		msg = strings.TrimPrefix(msg, ": error: ")
		msg = strings.TrimPrefix(msg, ": warning: ")

		d := NewDiagnostic("javac", level, strings.TrimSpace(msg))
		d.File = file
		d.Line = lineNum
		diags = append(diags, d)
	}

	if len(diags) == 0 && strings.TrimSpace(output) != "" {
		d := NewDiagnostic("javac", LevelError, strings.TrimSpace(output))
		d.File = file
		diags = append(diags, d)
	}

	return diags
}

// parseNodeOutput parses `node --check` output. Node prints the failing
// source location as "file:line" followed by a caret frame and a final
// "SyntaxError: message" line.
func parseNodeOutput(output, file string) []Diagnostic {
	var diags []Diagnostic
	var lineNum int

	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, file+":") {
			rest := line[len(file)+1:]
			if end := strings.IndexAny(rest, " \t"); end > 0 {
				rest = rest[:end]
			}
			if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
				lineNum = n
			}
			continue
		}
		if idx := strings.Index(line, "SyntaxError: "); idx >= 0 {
			d := NewDiagnostic("node", LevelError, strings.TrimSpace(line[idx+len("SyntaxError: "):]))
			d.File = file
			d.Line = lineNum
			diags = append(diags, d)
		}
	}

	if len(diags) == 0 && strings.TrimSpace(output) != "" {
		d := NewDiagnostic("node", LevelError, strings.TrimSpace(output))
		d.File = file
		diags = append(diags, d)
	}

	return diags
}

// parseTscOutput parses tsc lines of the form
//
//	file.ts(2,5): error TS1002: Unterminated string literal
func parseTscOutput(output, file string) []Diagnostic {
	var diags []Diagnostic

	for _, line := range strings.Split(output, "\n") {
		open := strings.Index(line, "(")
		if open < 0 {
			continue
		}
		closeIdx := strings.Index(line[open:], ")")
		if closeIdx < 0 {
			continue
		}
		closeIdx += open

		coords := strings.SplitN(line[open+1:closeIdx], ",", 2)
		if len(coords) != 2 {
			continue
		}
		lineNum, err1 := strconv.Atoi(strings.TrimSpace(coords[0]))
		col, err2 := strconv.Atoi(strings.TrimSpace(coords[1]))
		if err1 != nil || err2 != nil {
			continue
		}

		rest := strings.TrimSpace(strings.TrimPrefix(line[closeIdx+1:], ":"))

		level := LevelError
		if cut, found := strings.CutPrefix(rest, "warning "); found {
			level = LevelWarning
			rest = cut
		} else {
			rest = strings.TrimPrefix(rest, "error ")
		}

		var code string
		if strings.HasPrefix(rest, "TS") {
			if colon := strings.Index(rest, ":"); colon > 0 {
				code = rest[:colon]
				rest = strings.TrimSpace(rest[colon+1:])
			}
		}

		if rest == "" {
			continue
		}

		d := NewDiagnostic("tsc", level, rest)
		d.File = file
		d.Line = lineNum
		if col > 0 {
			d.Column = col - 1
		}
		d.Code = code
		d.Remediation = RemediationLink(code)
		diags = append(diags, d)
	}

	if len(diags) == 0 && strings.TrimSpace(output) != "" {
		d := NewDiagnostic("tsc", LevelError, strings.TrimSpace(output))
		d.File = file
		diags = append(diags, d)
	}

	return diags
}
