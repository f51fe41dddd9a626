// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/rigrun-chat/internal/ollama"
)

// quotePairs are the wrappers models like to put around a bare title.
var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"`", "`"},
	{"“", "”"},
	{"‘", "’"},
}

// GetTitle asks the selected model for a short chat title describing
// userPrompt. The request is non-streaming.
func (s *Store) GetTitle(ctx context.Context, userPrompt string) (string, error) {
	selected := s.SelectedModel()
	if selected.IsZero() {
		return "", ErrNoModelSelected
	}

	resp, err := s.backend.Generate(ctx, ollama.GenerateRequest{
		Model:  selected.Name,
		Prompt: s.titlePrompt + ":\n\n" + userPrompt,
	})
	if err != nil {
		s.logger.Printf("TITLE_ERROR | model=%s error=%v", selected.Name, err)
		return "", fmt.Errorf("generate title with %s: %w", selected.Name, err)
	}

	return CleanTitle(resp.Response), nil
}

// GenerateTitle derives a title from the first user message and stores it
// as the conversation title.
func (s *Store) GenerateTitle(ctx context.Context) (string, error) {
	s.mu.Lock()
	first := s.conv.GetFirstUserMessage()
	var prompt string
	if first != nil {
		prompt = first.Text
	}
	s.mu.Unlock()

	if first == nil {
		return "", errors.New("no user message to derive a title from")
	}

	title, err := s.GetTitle(ctx, prompt)
	if err != nil {
		return "", err
	}
	if title != "" {
		s.SetTitle(title)
	}
	return title, nil
}

// CleanTitle normalizes a model-produced title: NFC form, surrounding
// whitespace removed and one pair of wrapping quotes stripped.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(norm.NFC.String(raw))
	for _, pair := range quotePairs {
		if len(title) >= len(pair[0])+len(pair[1]) &&
			strings.HasPrefix(title, pair[0]) && strings.HasSuffix(title, pair[1]) {
			title = strings.TrimSpace(title[len(pair[0]) : len(title)-len(pair[1])])
			break
		}
	}
	return title
}
