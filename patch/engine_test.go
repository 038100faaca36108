// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oldnordic/splice/ast"
	"github.com/oldnordic/splice/span"
	"github.com/oldnordic/splice/validate"
)

// testEngine returns an engine whose cargo gate is replaced by a
// trivially passing (or failing) binary, so tests do not depend on a
// Rust toolchain.
func testEngine(cargoPasses bool) *Engine {
	e := NewEngine()
	cargo := "true"
	if !cargoPasses {
		cargo = "false"
	}
	e.Runner.ToolOverrides = map[string]string{"cargo": cargo}
	return e
}

func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

const greetSrc = `pub fn greet(name: &str) -> String { format!("Hello, {}!", name) }
`

func TestApplyBatchCommits(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"Cargo.toml": "[package]\nname = \"fixture\"\n",
		"lib.rs":     greetSrc,
	})
	file := filepath.Join(dir, "lib.rs")
	replacement := `pub fn greet(name: &str) -> String { format!("Hi, {}!", name) }`

	report, err := testEngine(true).ApplyBatch(context.Background(), Batch{
		Replacements: []SpanReplacement{{
			File:       file,
			ByteStart:  0,
			ByteEnd:    len(greetSrc) - 1, // keep the trailing newline
			NewContent: replacement,
		}},
	}, Options{Language: ast.LangRust, WorkspaceDir: dir})
	require.NoError(t, err)

	require.Len(t, report.Files, 1)
	assert.NotEqual(t, report.Files[0].BeforeHash, report.Files[0].AfterHash)

	got, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, replacement+"\n", string(got))
	assert.Equal(t, span.Hash(got), report.Files[0].AfterHash)
}

func TestApplyEmptyBatchIsNoOp(t *testing.T) {
	report, err := testEngine(true).ApplyBatch(context.Background(), Batch{}, Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Files)
}

func TestApplyBatchRejectsOverlap(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"Cargo.toml": "[package]\nname = \"fixture\"\n",
		"lib.rs":     greetSrc,
	})
	file := filepath.Join(dir, "lib.rs")
	before, _ := os.ReadFile(file)

	_, err := testEngine(true).ApplyBatch(context.Background(), Batch{
		Replacements: []SpanReplacement{
			{File: file, ByteStart: 0, ByteEnd: 10, NewContent: "a"},
			{File: file, ByteStart: 5, ByteEnd: 15, NewContent: "b"},
		},
	}, Options{Language: ast.LangRust, WorkspaceDir: dir})

	var schemaErr *InvalidBatchSchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Message, "overlapping")

	after, _ := os.ReadFile(file)
	assert.Equal(t, before, after, "rejected batch must not touch disk")
}

func TestApplyBatchRejectsUnalignedSpan(t *testing.T) {
	src := "// h\xc3\xa9llo\nfn f() {}\n"
	dir := writeWorkspace(t, map[string]string{
		"Cargo.toml": "[package]\nname = \"fixture\"\n",
		"lib.rs":     src,
	})
	file := filepath.Join(dir, "lib.rs")

	_, err := testEngine(true).ApplyBatch(context.Background(), Batch{
		Replacements: []SpanReplacement{{
			// Offset 5 lands inside the two-byte é.
			File: file, ByteStart: 5, ByteEnd: 8, NewContent: "x",
		}},
	}, Options{Language: ast.LangRust, WorkspaceDir: dir})

	var unaligned *span.UnalignedSpanError
	require.True(t, errors.As(err, &unaligned))

	after, _ := os.ReadFile(file)
	assert.Equal(t, src, string(after))
}

func TestSyntaxGateRollsBack(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"Cargo.toml": "[package]\nname = \"fixture\"\n",
		"lib.rs":     greetSrc,
	})
	file := filepath.Join(dir, "lib.rs")
	beforeHash := span.Hash([]byte(greetSrc))

	_, err := testEngine(true).ApplyBatch(context.Background(), Batch{
		Replacements: []SpanReplacement{{
			File:       file,
			ByteStart:  0,
			ByteEnd:    len(greetSrc) - 1,
			NewContent: "pub fn greet(",
		}},
	}, Options{Language: ast.LangRust, WorkspaceDir: dir})

	var pv *ast.ParseValidationError
	require.True(t, errors.As(err, &pv))

	after, readErr := os.ReadFile(file)
	require.NoError(t, readErr)
	assert.Equal(t, beforeHash, span.Hash(after), "rollback must restore pre-edit bytes")
}

func TestSemanticGateRollsBack(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"Cargo.toml": "[package]\nname = \"fixture\"\n",
		"lib.rs":     greetSrc,
	})
	file := filepath.Join(dir, "lib.rs")

	// Syntactically fine, semantically judged by the (failing) cargo
	// stand-in.
	_, err := testEngine(false).ApplyBatch(context.Background(), Batch{
		Replacements: []SpanReplacement{{
			File:       file,
			ByteStart:  0,
			ByteEnd:    len(greetSrc) - 1,
			NewContent: "pub fn greet(name: &str) -> String { 42 }",
		}},
	}, Options{Language: ast.LangRust, WorkspaceDir: dir})

	var cargoErr *validate.CargoCheckError
	require.True(t, errors.As(err, &cargoErr))
	assert.Equal(t, "CargoCheckFailed", cargoErr.ErrorKind())
	assert.NotEmpty(t, cargoErr.Diagnostics())

	after, readErr := os.ReadFile(file)
	require.NoError(t, readErr)
	assert.Equal(t, greetSrc, string(after))
}

func TestBatchAtomicityAcrossFiles(t *testing.T) {
	aSrc := "pub fn alpha() -> i32 { 1 }\n"
	bSrc := "pub fn beta() -> i32 { 2 }\n"
	dir := writeWorkspace(t, map[string]string{
		"Cargo.toml": "[package]\nname = \"fixture\"\n",
		"a.rs":       aSrc,
		"b.rs":       bSrc,
	})
	aPath := filepath.Join(dir, "a.rs")
	bPath := filepath.Join(dir, "b.rs")

	// The semantic gate fails; both files must come back byte-identical
	// even though both writes already happened.
	_, err := testEngine(false).ApplyBatch(context.Background(), Batch{
		Replacements: []SpanReplacement{
			{File: aPath, ByteStart: 0, ByteEnd: len(aSrc) - 1, NewContent: "pub fn alpha() -> i32 { 10 }"},
			{File: bPath, ByteStart: 0, ByteEnd: len(bSrc) - 1, NewContent: "pub fn beta() -> i32 { \"two\" }"},
		},
	}, Options{Language: ast.LangRust, WorkspaceDir: dir})
	require.Error(t, err)

	aAfter, _ := os.ReadFile(aPath)
	bAfter, _ := os.ReadFile(bPath)
	assert.Equal(t, aSrc, string(aAfter))
	assert.Equal(t, bSrc, string(bAfter))
}

func TestPreviewLeavesWorkspaceUntouched(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"Cargo.toml": "[package]\nname = \"fixture\"\n",
		"lib.rs":     greetSrc,
	})
	file := filepath.Join(dir, "lib.rs")

	report, err := testEngine(true).ApplyBatch(context.Background(), Batch{
		Replacements: []SpanReplacement{{
			File:       file,
			ByteStart:  0,
			ByteEnd:    len(greetSrc) - 1,
			NewContent: `pub fn greet(name: &str) -> String { format!("Hi, {}!", name) }`,
		}},
	}, Options{Language: ast.LangRust, WorkspaceDir: dir, Preview: true})
	require.NoError(t, err)

	require.Len(t, report.PreviewReports, 1)
	pr := report.PreviewReports[0]
	assert.Positive(t, pr.BytesAdded)
	assert.Positive(t, pr.BytesRemoved)
	assert.Contains(t, pr.Diff, "Hi, {}!")

	after, _ := os.ReadFile(file)
	assert.Equal(t, greetSrc, string(after), "preview must not modify the workspace")
}

func TestBackupAndRestore(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"Cargo.toml": "[package]\nname = \"fixture\"\n",
		"lib.rs":     greetSrc,
	})
	file := filepath.Join(dir, "lib.rs")
	originalHash := span.Hash([]byte(greetSrc))

	report, err := testEngine(true).ApplyBatch(context.Background(), Batch{
		Replacements: []SpanReplacement{{
			File:       file,
			ByteStart:  0,
			ByteEnd:    len(greetSrc) - 1,
			NewContent: `pub fn greet(name: &str) -> String { format!("Hi, {}!", name) }`,
		}},
	}, Options{
		Language:     ast.LangRust,
		WorkspaceDir: dir,
		CreateBackup: true,
		OperationID:  "op-test",
	})
	require.NoError(t, err)
	require.NotEmpty(t, report.BackupManifestPath)
	assert.Equal(t, "op-test", report.OperationID)

	manifest, err := LoadManifest(report.BackupManifestPath)
	require.NoError(t, err)
	require.Len(t, manifest.Files, 1)
	assert.Equal(t, originalHash, manifest.Files[0].Hash)
	assert.Equal(t, report.Files[0].AfterHash, manifest.Files[0].AfterHash)

	restored, err := Restore(report.BackupManifestPath, dir, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	after, _ := os.ReadFile(file)
	assert.Equal(t, originalHash, span.Hash(after))
}

func TestRestoreSkipsDivergedFilesWithoutForce(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"Cargo.toml": "[package]\nname = \"fixture\"\n",
		"lib.rs":     greetSrc,
	})
	file := filepath.Join(dir, "lib.rs")

	report, err := testEngine(true).ApplyBatch(context.Background(), Batch{
		Replacements: []SpanReplacement{{
			File:       file,
			ByteStart:  0,
			ByteEnd:    len(greetSrc) - 1,
			NewContent: `pub fn greet(name: &str) -> String { format!("Hi, {}!", name) }`,
		}},
	}, Options{Language: ast.LangRust, WorkspaceDir: dir, CreateBackup: true})
	require.NoError(t, err)

	// The file moves on after the patch.
	diverged := "// hand edit\nfn other() {}\n"
	require.NoError(t, os.WriteFile(file, []byte(diverged), 0o644))

	restored, err := Restore(report.BackupManifestPath, dir, RestoreOptions{})
	require.NoError(t, err)
	assert.Zero(t, restored)

	after, _ := os.ReadFile(file)
	assert.Equal(t, diverged, string(after))

	// Force overrides the hash check.
	restored, err = Restore(report.BackupManifestPath, dir, RestoreOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
}

func TestLoadBatchesSchema(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "lib.rs")
	require.NoError(t, os.WriteFile(target, []byte(greetSrc), 0o644))

	manifest := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`{
  "batches": [
    { "replacements": [
      { "file": "lib.rs", "start": 0, "end": 3, "content": "pub" }
    ] }
  ]
}`), 0o644))

	batches, err := LoadBatches(manifest)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Replacements, 1)
	assert.Equal(t, target, batches[0].Replacements[0].File)
	assert.Equal(t, "pub", batches[0].Replacements[0].NewContent)
}

func TestLoadBatchesErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	var schemaErr *InvalidBatchSchemaError

	_, err := LoadBatches(write("empty.json", `{"batches": []}`))
	require.True(t, errors.As(err, &schemaErr))

	_, err = LoadBatches(write("no-reps.json", `{"batches": [{"replacements": []}]}`))
	require.True(t, errors.As(err, &schemaErr))

	_, err = LoadBatches(write("both.json", `{"batches": [{"replacements": [
		{"file": "a.rs", "start": 0, "end": 1, "content": "x", "with": "y"}
	]}]}`))
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Message, "only one")

	_, err = LoadBatches(write("neither.json", `{"batches": [{"replacements": [
		{"file": "a.rs", "start": 0, "end": 1}
	]}]}`))
	require.True(t, errors.As(err, &schemaErr))
}

func TestFindPatternConfirmsAST(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "lib.rs")
	src := `// limit is 42 in this comment
fn f() -> i32 {
    let s = "42 in a string";
    42
}
`
	require.NoError(t, os.WriteFile(file, []byte(src), 0o644))

	matches, err := FindPattern(context.Background(), PatternConfig{
		Glob:     filepath.Join(dir, "*.rs"),
		Find:     "42",
		Language: ast.LangRust,
	})
	require.NoError(t, err)

	// Only the bare literal counts; comment and string occurrences are
	// rejected by AST confirmation.
	require.Len(t, matches, 1)
	assert.Equal(t, strings.Index(src, "    42")+4, matches[0].ByteStart)
}

func TestFindPatternCommentPrefixAllowsCommentMatches(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "lib.rs")
	src := "// TODO old\nfn f() {}\n"
	require.NoError(t, os.WriteFile(file, []byte(src), 0o644))

	matches, err := FindPattern(context.Background(), PatternConfig{
		Glob:     filepath.Join(dir, "*.rs"),
		Find:     "// TODO",
		Language: ast.LangRust,
	})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
