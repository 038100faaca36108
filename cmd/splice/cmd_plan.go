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
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oldnordic/splice/plan"
)

var (
	planPath      string
	planWorkspace string

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Execute a sequential multi-step refactoring plan",
		Long:  "Runs the plan's steps in order. Each step is one atomic patch; failure at step i halts execution with earlier steps already committed.",
		RunE:  runPlan,
	}
)

func init() {
	planCmd.Flags().StringVar(&planPath, "plan", "", "path to the plan.json file")
	planCmd.Flags().StringVar(&planWorkspace, "workspace", "", "workspace directory (default: current directory)")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if planPath == "" {
		return fmt.Errorf("plan requires --plan")
	}

	workspace := planWorkspace
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		workspace = wd
	}

	messages, err := plan.Execute(ctx, planPath, workspace)
	if err != nil {
		return err
	}

	data := map[string]any{"steps": messages}
	addMetadata(data)
	emitSuccess(fmt.Sprintf("executed %d plan step(s)", len(messages)), data)
	return nil
}
