// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/ollama"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// maxNameWidth caps the model name column.
const maxNameWidth = 40

func newModelsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models installed on the Ollama server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			models, err := a.store.GetModels(cmd.Context())
			if err != nil {
				return err
			}
			printModels(a.out, models, a.store.SelectedModel().Name)
			return nil
		},
	}
}

// printModels writes models as an aligned table, marking current.
func printModels(w io.Writer, models []ollama.ModelInfo, current string) {
	if len(models) == 0 {
		fmt.Fprintln(w, warningStyle.Render("No models installed."), "Pull one with: ollama pull llama3.2")
		return
	}

	currentName := ""
	if current != "" {
		if info, ok := model.FindModel(models, current); ok {
			currentName = info.Name
		}
	}

	headers := []string{"NAME", "SIZE", "FAMILY", "PARAMS", "QUANT"}
	rows := make([][]string, len(models))
	for i := range models {
		m := &models[i]
		rows[i] = []string{
			util.TruncateWidth(m.Name, maxNameWidth),
			m.FormatSize(),
			m.Details.Family,
			m.Details.ParameterSize,
			m.Details.QuantizationLevel,
		}
	}

	widths := make([]int, len(headers))
	for col, h := range headers {
		widths[col] = util.StringWidth(h)
		for _, row := range rows {
			widths[col] = max(widths[col], util.StringWidth(row[col]))
		}
	}

	fmt.Fprintln(w, "  "+labelStyle.Render(formatRow(headers, widths)))
	for i, row := range rows {
		marker := "  "
		line := formatRow(row, widths)
		if models[i].Name == currentName {
			marker = successStyle.Render("* ")
			line = valueStyle.Render(line)
		}
		fmt.Fprintln(w, marker+line)
	}
}

// formatRow pads each cell to its column width. Trailing spaces are
// trimmed so the last column is not padded.
func formatRow(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(util.PadRight(cell, widths[i]))
	}
	return strings.TrimRight(b.String(), " ")
}
