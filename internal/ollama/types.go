// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import (
	"fmt"
	"time"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// GenerateRequest is the request body for /api/generate endpoint.
//
// Stream is a pointer so the streaming form can leave the key out entirely;
// the server streams by default.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream *bool  `json:"stream,omitempty"`
}

// Bool returns a pointer to b, for GenerateRequest.Stream.
func Bool(b bool) *bool {
	return &b
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GenerateResponse is the response from /api/generate endpoint.
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// =============================================================================
// MODEL TYPES
// =============================================================================

// ModelInfo contains information about a model.
type ModelInfo struct {
	Name    string       `json:"name"`
	Size    int64        `json:"size"`
	Details ModelDetails `json:"details,omitempty"`
}

// ModelDetails contains detailed information about a model.
type ModelDetails struct {
	Family            string `json:"family"`
	ParameterSize     string `json:"parameter_size"`
	QuantizationLevel string `json:"quantization_level"`
}

// ListModelsResponse is the response from /api/tags endpoint.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// FormatSize formats the model size in human-readable form.
func (m *ModelInfo) FormatSize() string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case m.Size >= GB:
		return formatUnit(float64(m.Size)/GB, "GB")
	case m.Size >= MB:
		return formatUnit(float64(m.Size)/MB, "MB")
	case m.Size >= KB:
		return formatUnit(float64(m.Size)/KB, "KB")
	default:
		return fmt.Sprintf("%d B", m.Size)
	}
}

func formatUnit(f float64, unit string) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d %s", int64(f), unit)
	}
	return fmt.Sprintf("%.1f %s", f, unit)
}

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk represents a single decoded line of a generate stream.
type StreamChunk struct {
	// Content is the "response" fragment of this line, possibly empty.
	Content string

	// Timing information (only populated on final chunk)
	Done               bool
	TotalDuration      time.Duration
	LoadDuration       time.Duration
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration

	// Token counts (only populated on final chunk)
	PromptTokens     int
	CompletionTokens int
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// OllamaError is the error body returned by the Ollama API.
type OllamaError struct {
	Error string `json:"error"`
}
