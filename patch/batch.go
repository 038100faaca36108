// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patch stages byte-range replacements across files as atomic
// transactions with validation gates.
//
// A Batch is the unit of atomicity: either every replacement commits, or
// every touched file is rolled back to its pre-edit bytes. Validation is
// staged - syntax gate (tree-sitter reparse), semantic gate (language
// compiler), optional rust-analyzer gate - and any failure triggers
// rollback.
package patch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SpanReplacement replaces the half-open byte range [ByteStart, ByteEnd)
// of File with NewContent.
type SpanReplacement struct {
	// File is the target path.
	File string

	// ByteStart and ByteEnd delimit the replaced span.
	ByteStart int
	ByteEnd   int

	// NewContent is the replacement text. Empty deletes the span.
	NewContent string
}

// Batch is an ordered sequence of replacements applied as one
// transaction, possibly across several files.
type Batch struct {
	Replacements []SpanReplacement
}

// InvalidBatchSchemaError reports a malformed batch manifest.
type InvalidBatchSchemaError struct {
	Message string
}

func (e *InvalidBatchSchemaError) Error() string {
	return fmt.Sprintf("invalid batch schema: %s", e.Message)
}

// ErrorKind returns the stable kind tag for CLI payloads.
func (e *InvalidBatchSchemaError) ErrorKind() string { return "InvalidBatchSchema" }

// batchSpec mirrors the JSON manifest format:
//
//	{ "batches": [ { "replacements": [
//	    { "file": "...", "start": 0, "end": 10,
//	      "content": "inline" | "with": "path" } ] } ] }
type batchSpec struct {
	Batches []batchEntry `json:"batches"`
}

type batchEntry struct {
	Replacements []replacementSpec `json:"replacements"`
}

type replacementSpec struct {
	File    string  `json:"file"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Content *string `json:"content"`
	With    *string `json:"with"`
}

// LoadBatches reads a JSON batch manifest. Relative paths in "file" and
// "with" resolve against the manifest's parent directory; "content" and
// "with" are mutually exclusive.
func LoadBatches(manifestPath string) ([]Batch, error) {
	contents, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading batch manifest: %w", err)
	}

	var spec batchSpec
	if err := json.Unmarshal(contents, &spec); err != nil {
		return nil, &InvalidBatchSchemaError{Message: fmt.Sprintf("JSON parse error: %v", err)}
	}

	if len(spec.Batches) == 0 {
		return nil, &InvalidBatchSchemaError{Message: "batch file must contain at least one entry"}
	}

	baseDir := filepath.Dir(manifestPath)

	batches := make([]Batch, 0, len(spec.Batches))
	for i, entry := range spec.Batches {
		if len(entry.Replacements) == 0 {
			return nil, &InvalidBatchSchemaError{
				Message: fmt.Sprintf("batch %d contains no replacements", i+1),
			}
		}

		var batch Batch
		for j, r := range entry.Replacements {
			content, err := resolveContent(baseDir, r)
			if err != nil {
				return nil, &InvalidBatchSchemaError{
					Message: fmt.Sprintf("batch %d replacement %d: %v", i+1, j+1, err),
				}
			}
			batch.Replacements = append(batch.Replacements, SpanReplacement{
				File:       resolvePath(baseDir, r.File),
				ByteStart:  r.Start,
				ByteEnd:    r.End,
				NewContent: content,
			})
		}
		batches = append(batches, batch)
	}

	return batches, nil
}

func resolvePath(baseDir, value string) string {
	if filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(baseDir, value)
}

func resolveContent(baseDir string, spec replacementSpec) (string, error) {
	switch {
	case spec.Content != nil && spec.With != nil:
		return "", fmt.Errorf("specify only one of 'content' or 'with'")
	case spec.Content != nil:
		return *spec.Content, nil
	case spec.With != nil:
		path := resolvePath(baseDir, *spec.With)
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %q: %v", path, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("replacement requires either 'content' or 'with' field")
	}
}
