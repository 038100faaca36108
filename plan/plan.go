// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plan parses and executes sequential multi-step refactoring
// plans.
//
// Each step is one atomic patch; the plan itself is not a transaction.
// Failure at step i halts execution with steps 1..i-1 already
// committed.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oldnordic/splice/ast"
	"github.com/oldnordic/splice/graph"
	"github.com/oldnordic/splice/patch"
	"github.com/oldnordic/splice/resolve"
	"github.com/oldnordic/splice/validate"
)

// Step is one patch operation: resolve the symbol in file and replace
// its span with the contents of With.
type Step struct {
	// File is the source file containing the symbol.
	File string `json:"file"`

	// Symbol is the name to resolve.
	Symbol string `json:"symbol"`

	// Kind optionally restricts the symbol kind.
	Kind string `json:"kind,omitempty"`

	// With is the path of the replacement content file.
	With string `json:"with"`
}

// Plan is a sequence of steps executed in order.
type Plan struct {
	Steps []Step `json:"steps"`
}

// InvalidPlanSchemaError reports a malformed plan file.
type InvalidPlanSchemaError struct {
	Message string
}

func (e *InvalidPlanSchemaError) Error() string {
	return fmt.Sprintf("invalid plan schema: %s", e.Message)
}

// ErrorKind returns the stable kind tag for CLI payloads.
func (e *InvalidPlanSchemaError) ErrorKind() string { return "InvalidPlanSchema" }

// PlanExecutionError wraps the failure of one step. Earlier steps stay
// committed.
type PlanExecutionError struct {
	// Step is the failing 1-based step index.
	Step int

	// Err is the step's failure.
	Err error
}

func (e *PlanExecutionError) Error() string {
	return fmt.Sprintf("plan execution failed at step %d: %v", e.Step, e.Err)
}

func (e *PlanExecutionError) Unwrap() error { return e.Err }

// ErrorKind returns the stable kind tag for CLI payloads.
func (e *PlanExecutionError) ErrorKind() string { return "PlanExecutionFailed" }

// Parse reads and validates a plan file.
func Parse(planPath string) (*Plan, error) {
	content, err := os.ReadFile(planPath)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}

	var p Plan
	if err := json.Unmarshal(content, &p); err != nil {
		return nil, &InvalidPlanSchemaError{Message: fmt.Sprintf("JSON parse error: %v", err)}
	}

	if len(p.Steps) == 0 {
		return nil, &InvalidPlanSchemaError{Message: "plan must contain at least one step"}
	}

	for i, step := range p.Steps {
		if step.File == "" {
			return nil, &InvalidPlanSchemaError{Message: fmt.Sprintf("step %d has empty 'file' field", i+1)}
		}
		if step.Symbol == "" {
			return nil, &InvalidPlanSchemaError{Message: fmt.Sprintf("step %d has empty 'symbol' field", i+1)}
		}
		if step.With == "" {
			return nil, &InvalidPlanSchemaError{Message: fmt.Sprintf("step %d has empty 'with' field", i+1)}
		}
		if step.Kind != "" {
			if _, err := ast.ParseKind(step.Kind); err != nil {
				return nil, &InvalidPlanSchemaError{
					Message: fmt.Sprintf("step %d has invalid 'kind': %q", i+1, step.Kind),
				}
			}
		}
	}

	return &p, nil
}

// Execute runs every step of the plan sequentially. Paths in steps
// resolve relative to workspaceDir. Returns one success message per
// completed step.
func Execute(ctx context.Context, planPath, workspaceDir string) ([]string, error) {
	p, err := Parse(planPath)
	if err != nil {
		return nil, err
	}

	engine := patch.NewEngine()

	var messages []string
	for i, step := range p.Steps {
		message, err := executeStep(ctx, engine, step, workspaceDir)
		if err != nil {
			return messages, &PlanExecutionError{Step: i + 1, Err: err}
		}
		slog.Info("plan step complete",
			slog.Int("step", i+1),
			slog.String("symbol", step.Symbol))
		messages = append(messages, message)
	}

	return messages, nil
}

// executeStep resolves one symbol and applies its replacement as an
// atomic patch with full gates.
func executeStep(ctx context.Context, engine *patch.Engine, step Step, workspaceDir string) (string, error) {
	filePath := step.File
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(workspaceDir, filePath)
	}
	withPath := step.With
	if !filepath.IsAbs(withPath) {
		withPath = filepath.Join(workspaceDir, withPath)
	}

	lang, err := ast.DetectLanguage(filePath)
	if err != nil {
		return "", err
	}

	result, err := engine.Registry.ParseFile(ctx, filePath, lang)
	if err != nil {
		return "", err
	}

	idx := graph.NewIndex()
	if err := idx.AddResult(result); err != nil {
		return "", err
	}

	var kind ast.SymbolKind
	if step.Kind != "" {
		kind, _ = ast.ParseKind(step.Kind)
	}

	sym, err := resolve.Resolve(idx, resolve.Query{Name: step.Symbol, File: filePath, Kind: kind})
	if err != nil {
		return "", err
	}

	replacement, err := os.ReadFile(withPath)
	if err != nil {
		return "", fmt.Errorf("reading replacement file: %w", err)
	}

	report, err := engine.ApplyBatch(ctx, patch.Batch{Replacements: []patch.SpanReplacement{{
		File:       filePath,
		ByteStart:  sym.ByteStart,
		ByteEnd:    sym.ByteEnd,
		NewContent: string(replacement),
	}}}, patch.Options{
		Language:     lang,
		WorkspaceDir: workspaceDir,
		Analyzer:     validate.AnalyzerOff,
	})
	if err != nil {
		return "", err
	}

	f := report.Files[0]
	return fmt.Sprintf("patched %q at bytes %d..%d (hash: %s -> %s)",
		step.Symbol, sym.ByteStart, sym.ByteEnd, f.BeforeHash, f.AfterHash), nil
}
