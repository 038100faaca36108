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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oldnordic/splice/patch"
	"github.com/oldnordic/splice/resolve"
	"github.com/oldnordic/splice/validate"
)

func TestReportData(t *testing.T) {
	report := &patch.Report{
		Files: []patch.FileResult{
			{File: "a.rs", BeforeHash: "aaa", AfterHash: "bbb"},
		},
		OperationID:        "op-1",
		BackupManifestPath: "/ws/.splice-backup/op-1/manifest.json",
	}

	data := reportData(report)
	assert.Equal(t, "op-1", data["operation_id"])
	assert.Equal(t, "/ws/.splice-backup/op-1/manifest.json", data["backup_manifest"])

	files, ok := data["files"].([]map[string]any)
	assert.True(t, ok)
	assert.Len(t, files, 1)
	assert.Equal(t, "a.rs", files[0]["file"])
}

func TestErrorDetailExtraction(t *testing.T) {
	err := &resolve.SymbolNotFoundError{Name: "foo", File: "a.rs", Hint: "pass --file"}

	var k kinder
	assert.ErrorAs(t, err, &k)
	assert.Equal(t, "SymbolNotFound", k.ErrorKind())

	var f filer
	assert.ErrorAs(t, err, &f)
	assert.Equal(t, "a.rs", f.FilePath())

	var h hinter
	assert.ErrorAs(t, err, &h)
	assert.Equal(t, "pass --file", h.HintText())
}

func TestErrorDiagnosticsExtraction(t *testing.T) {
	cargoErr := &validate.CargoCheckError{
		Workspace: "/ws",
		Output:    "error: boom",
	}

	var d diagnoser
	assert.ErrorAs(t, cargoErr, &d)
	diags := d.Diagnostics()
	assert.Len(t, diags, 1)
	assert.Equal(t, validate.LevelError, diags[0].Level)
}
