// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTitleCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "title [prompt...]",
		Short: "Suggest a short chat title for a first message",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			title, err := a.store.GetTitle(cmd.Context(), prompt)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, title)
			return nil
		},
	}
}
