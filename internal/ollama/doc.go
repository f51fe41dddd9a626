// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// This package implements a client for the Ollama local LLM server covering
// the endpoints a chat front end needs: model listing (/api/tags) and text
// generation (/api/generate), both streaming and non-streaming.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - GenerateRequest: Request structure for /api/generate
//   - GenerateResponse: Non-streaming response text
//   - StreamReader: Line-delimited JSON reader that skips malformed lines
//     and reads to the end of the body
//   - StreamStats: Timing and token statistics for one generation
//
// # Usage
//
//	client := ollama.NewClientWithConfig(nil)
//	models, err := client.ListModels(ctx)
//
// For streaming responses:
//
//	err := client.GenerateStream(ctx, ollama.GenerateRequest{
//	    Model:  "llama3.2",
//	    Prompt: "Hello",
//	}, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	}, nil)
package ollama
