// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader handles line-by-line JSON parsing of generate streams.
//
// Each line is decoded on its own; a line that is not valid JSON is handed
// to OnSkip and dropped, it never aborts the stream. Reading continues
// past a done line until the body ends.
type StreamReader struct {
	reader *bufio.Reader

	// OnSkip receives malformed lines. May be nil.
	OnSkip SkipCallback
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader: bufio.NewReader(r),
	}
}

// Process reads the stream and calls the callback for each chunk.
// Blocks until the body is exhausted or the context is cancelled.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := s.readChunk()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if chunk != nil && callback != nil {
			callback(*chunk)
		}
	}
}

// readChunk reads and parses a single line from the stream.
// Returns (nil, nil) for lines that carry nothing to deliver.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if err != io.EOF || len(line) == 0 {
			return nil, err
		}
		// Last line without a trailing newline is still decoded
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	if !gjson.ValidBytes(line) {
		if s.OnSkip != nil {
			s.OnSkip(string(line))
		}
		return nil, nil
	}

	response := gjson.ParseBytes(line)

	var content string
	if fragment := response.Get("response"); fragment.Type == gjson.String {
		content = validUTF8(fragment.String())
	}

	chunk := &StreamChunk{
		Content: content,
		Done:    response.Get("done").Bool(),
	}

	// On completion, extract statistics
	if chunk.Done {
		chunk.TotalDuration = time.Duration(response.Get("total_duration").Int())
		chunk.LoadDuration = time.Duration(response.Get("load_duration").Int())
		chunk.PromptEvalDuration = time.Duration(response.Get("prompt_eval_duration").Int())
		chunk.EvalDuration = time.Duration(response.Get("eval_duration").Int())
		chunk.PromptTokens = int(response.Get("prompt_eval_count").Int())
		chunk.CompletionTokens = int(response.Get("eval_count").Int())
	}

	return chunk, nil
}

// validUTF8 replaces every byte that does not start a valid UTF-8 sequence
// with U+FFFD, so fragments are always safe to concatenate and render.
func validUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.WriteString(s[:size])
		}
		s = s[size:]
	}
	return b.String()
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds statistics collected during streaming.
type StreamStats struct {
	// Timing
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	// Durations (from Ollama response)
	TotalDuration      time.Duration
	LoadDuration       time.Duration
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration

	// Token counts
	PromptTokens     int
	CompletionTokens int

	// Computed
	TTFT            time.Duration // Time to first token
	TokensPerSecond float64
}

// NewStreamStats creates a new StreamStats with start time set.
func NewStreamStats() *StreamStats {
	return &StreamStats{
		StartTime: time.Now(),
	}
}

// RecordFirstToken marks the time of first token arrival.
func (s *StreamStats) RecordFirstToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
}

// Finalize computes final statistics from the last chunk.
func (s *StreamStats) Finalize(chunk StreamChunk) {
	s.EndTime = time.Now()
	s.TotalDuration = chunk.TotalDuration
	s.LoadDuration = chunk.LoadDuration
	s.PromptEvalDuration = chunk.PromptEvalDuration
	s.EvalDuration = chunk.EvalDuration
	s.PromptTokens = chunk.PromptTokens
	s.CompletionTokens = chunk.CompletionTokens

	if s.EvalDuration > 0 {
		s.TokensPerSecond = float64(s.CompletionTokens) / s.EvalDuration.Seconds()
	}
}

// Format returns a one-line summary such as
// "2.5s | 128 tokens | 51.2 tok/s | TTFT 234ms".
func (s *StreamStats) Format() string {
	total := s.TotalDuration
	if total == 0 && !s.EndTime.IsZero() {
		total = s.EndTime.Sub(s.StartTime)
	}

	var elapsed string
	if total < time.Second {
		elapsed = fmt.Sprintf("%dms", total.Milliseconds())
	} else {
		elapsed = fmt.Sprintf("%.1fs", total.Seconds())
	}

	return fmt.Sprintf("%s | %d tokens | %.1f tok/s | TTFT %dms",
		elapsed, s.CompletionTokens, s.TokensPerSecond, s.TTFT.Milliseconds())
}
