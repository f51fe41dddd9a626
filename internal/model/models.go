// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"

	"github.com/jeranaias/rigrun-chat/internal/ollama"
)

// =============================================================================
// SELECTED MODEL
// =============================================================================

// SelectedModel is the model the user picked for generation.
// Only Name is sent to the server; the rest is for display.
type SelectedModel struct {
	Name          string `json:"name"`
	Size          string `json:"size,omitempty"`
	Family        string `json:"family,omitempty"`
	ParameterSize string `json:"parameter_size,omitempty"`
	Quantization  string `json:"quantization,omitempty"`
}

// IsZero reports whether no model is selected.
func (s SelectedModel) IsZero() bool {
	return s.Name == ""
}

// Describe returns the name followed by whatever details are known,
// e.g. "llama3.2:latest (llama, 3.2B, Q4_K_M)".
func (s SelectedModel) Describe() string {
	var details []string
	for _, d := range []string{s.Family, s.ParameterSize, s.Quantization} {
		if d != "" {
			details = append(details, d)
		}
	}
	if len(details) == 0 {
		return s.Name
	}
	return s.Name + " (" + strings.Join(details, ", ") + ")"
}

// SelectedModelFromInfo builds a selection from a /api/tags entry.
func SelectedModelFromInfo(info ollama.ModelInfo) SelectedModel {
	return SelectedModel{
		Name:          info.Name,
		Size:          info.FormatSize(),
		Family:        info.Details.Family,
		ParameterSize: info.Details.ParameterSize,
		Quantization:  info.Details.QuantizationLevel,
	}
}

// FindModel looks a model up by name. A name without a tag matches the
// ":latest" tag, as the Ollama CLI does.
func FindModel(models []ollama.ModelInfo, name string) (ollama.ModelInfo, bool) {
	for _, m := range models {
		if m.Name == name {
			return m, true
		}
	}
	if !strings.Contains(name, ":") {
		return FindModel(models, name+":latest")
	}
	return ollama.ModelInfo{}, false
}
