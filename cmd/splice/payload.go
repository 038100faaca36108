// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/oldnordic/splice/ast"
	"github.com/oldnordic/splice/patch"
	"github.com/oldnordic/splice/validate"
)

// successPayload is the stdout JSON envelope.
type successPayload struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// errorPayload is the stderr JSON envelope.
type errorPayload struct {
	Status string      `json:"status"`
	Error  errorDetail `json:"error"`
}

type errorDetail struct {
	Kind        string                `json:"kind"`
	Message     string                `json:"message"`
	File        string                `json:"file,omitempty"`
	Hint        string                `json:"hint,omitempty"`
	Diagnostics []validate.Diagnostic `json:"diagnostics,omitempty"`
}

// kinder is implemented by every typed splice error.
type kinder interface {
	ErrorKind() string
}

// filer is implemented by errors that refer to one file.
type filer interface {
	FilePath() string
}

// hinter is implemented by errors carrying an actionable hint.
type hinter interface {
	HintText() string
}

// diagnoser is implemented by errors carrying compiler diagnostics.
type diagnoser interface {
	Diagnostics() []validate.Diagnostic
}

// emitSuccess renders the success envelope on stdout.
func emitSuccess(message string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	payload := successPayload{Status: "ok", Message: message, Data: data}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode success payload: %v\n", err)
		return
	}
	fmt.Fprintln(os.Stdout, string(out))
}

// emitError renders the error envelope on stderr.
func emitError(err error) {
	detail := errorDetail{
		Kind:    "Other",
		Message: err.Error(),
	}

	var k kinder
	if errors.As(err, &k) {
		detail.Kind = k.ErrorKind()
	}
	var f filer
	if errors.As(err, &f) {
		detail.File = f.FilePath()
	}
	var h hinter
	if errors.As(err, &h) {
		detail.Hint = h.HintText()
	}
	var d diagnoser
	if errors.As(err, &d) {
		detail.Diagnostics = d.Diagnostics()
	}

	// The syntax gate carries its parser message rather than compiler
	// diagnostics; normalize it into one tree-sitter record.
	var pv *ast.ParseValidationError
	if errors.As(err, &pv) && len(detail.Diagnostics) == 0 {
		diag := validate.NewDiagnostic("tree-sitter", validate.LevelError, pv.Message)
		diag.File = pv.File
		diag.Line = pv.Line
		diag.Column = pv.Column
		detail.Diagnostics = []validate.Diagnostic{diag}
	}

	payload := errorPayload{Status: "error", Error: detail}
	out, encodeErr := json.MarshalIndent(payload, "", "  ")
	if encodeErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, string(out))
}

// reportData converts an engine report into the success payload's data
// map, folding in operation metadata.
func reportData(report *patch.Report) map[string]any {
	data := map[string]any{}

	files := make([]map[string]any, 0, len(report.Files))
	for _, f := range report.Files {
		files = append(files, map[string]any{
			"file":        f.File,
			"before_hash": f.BeforeHash,
			"after_hash":  f.AfterHash,
		})
	}
	data["files"] = files

	if report.OperationID != "" {
		data["operation_id"] = report.OperationID
	}
	if report.BackupManifestPath != "" {
		data["backup_manifest"] = report.BackupManifestPath
	}
	if len(report.PreviewReports) == 1 {
		data["preview_report"] = report.PreviewReports[0]
	} else if len(report.PreviewReports) > 1 {
		data["preview_reports"] = report.PreviewReports
	}

	addMetadata(data)
	return data
}

// addMetadata echoes --metadata into the payload, as parsed JSON when
// it parses, as a plain string otherwise.
func addMetadata(data map[string]any) {
	if flagMetadata == "" {
		return
	}
	var parsed any
	if err := json.Unmarshal([]byte(flagMetadata), &parsed); err == nil {
		data["metadata"] = parsed
	} else {
		data["metadata"] = flagMetadata
	}
}
