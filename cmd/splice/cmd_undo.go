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
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oldnordic/splice/patch"
)

var (
	undoManifest string
	undoForce    bool

	undoCmd = &cobra.Command{
		Use:   "undo",
		Short: "Restore files from a backup manifest",
		Long:  "Restores each backed-up file when its current content still matches the patched state the manifest recorded; --force restores unconditionally.",
		RunE:  runUndo,
	}
)

func init() {
	undoCmd.Flags().StringVar(&undoManifest, "manifest", "", "path to the backup manifest.json")
	undoCmd.Flags().BoolVar(&undoForce, "force", false, "restore even when files changed after the patch")
	rootCmd.AddCommand(undoCmd)
}

func runUndo(cmd *cobra.Command, args []string) error {
	if undoManifest == "" {
		return fmt.Errorf("undo requires --manifest")
	}

	// The manifest lives at <root>/.splice-backup/<op>/manifest.json,
	// so the workspace root is two directories up from its parent.
	abs, err := filepath.Abs(undoManifest)
	if err != nil {
		return err
	}
	workspaceRoot := filepath.Dir(filepath.Dir(filepath.Dir(abs)))

	restored, err := patch.Restore(abs, workspaceRoot, patch.RestoreOptions{Force: undoForce})
	if err != nil {
		return err
	}

	data := map[string]any{"restored": restored}
	addMetadata(data)
	emitSuccess(fmt.Sprintf("restored %d file(s) from %s", restored, undoManifest), data)
	return nil
}
