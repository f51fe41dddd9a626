// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/ollama"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// ErrNoModelSelected is returned by operations that need a model when none
// has been selected. The store is left untouched.
var ErrNoModelSelected = errors.New("no model selected")

// Backend is the subset of the Ollama client the store talks to.
type Backend interface {
	GenerateStream(ctx context.Context, request ollama.GenerateRequest, callback ollama.StreamCallback, onSkip ollama.SkipCallback) error
	Generate(ctx context.Context, request ollama.GenerateRequest) (*ollama.GenerateResponse, error)
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// DefaultTitlePrompt is prepended to the user's first message when asking
// the model for a chat title.
const DefaultTitlePrompt = "Based on the user's first message, generate a short, descriptive chat title (20-30 characters). Make sure it's concise and relevant to the content of the message without adding any extra characters or strings. just raw output"

// Config holds configuration for the store.
type Config struct {
	// TitlePrompt replaces DefaultTitlePrompt when set.
	TitlePrompt string

	// Logger receives warnings and errors (default: log.Default()).
	Logger *log.Logger
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		TitlePrompt: DefaultTitlePrompt,
		Logger:      log.Default(),
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store is the single mutable state container of a chat session: the
// message log, the loading flag and the selected model.
//
// The message log only grows. Each Generate call streams into the bot
// message it appended itself, so overlapping calls never write into each
// other's messages. Loading stays true while any generation is in flight.
//
// Store is safe for concurrent use. Subscribers are called without the
// store lock held and may call back into the store.
type Store struct {
	mu sync.Mutex

	conv     *model.Conversation
	selected model.SelectedModel
	inflight int

	backend     Backend
	titlePrompt string
	logger      *log.Logger

	subscribers map[int]func(Event)
	nextSubID   int
}

// NewStore creates an empty store backed by the given client.
func NewStore(backend Backend, cfg Config) *Store {
	if cfg.TitlePrompt == "" {
		cfg.TitlePrompt = DefaultTitlePrompt
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Store{
		conv:        model.NewConversation(),
		backend:     backend,
		titlePrompt: cfg.TitlePrompt,
		logger:      cfg.Logger,
		subscribers: make(map[int]func(Event)),
	}
}

// =============================================================================
// STATE ACCESSORS
// =============================================================================

// Messages returns a copy of the message log.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Snapshot()
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.MessageCount()
}

// Loading reports whether a generation is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// SelectModel sets the model used by Generate and GetTitle.
// A zero SelectedModel clears the selection.
func (s *Store) SelectModel(m model.SelectedModel) {
	s.mu.Lock()
	s.selected = m
	s.mu.Unlock()
}

// SelectedModel returns the current selection.
func (s *Store) SelectedModel() model.SelectedModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Title returns the conversation title.
func (s *Store) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.GetTitle()
}

// SetTitle sets the conversation title.
func (s *Store) SetTitle(title string) {
	s.mu.Lock()
	s.conv.SetTitle(title)
	s.mu.Unlock()
	s.emit(Event{Type: EventTitleChanged, Title: title})
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate appends the prompt as a user message followed by an empty bot
// message, then streams the model's answer into that bot message.
//
// With no model selected it does nothing and returns ErrNoModelSelected.
// Failures are logged and returned; whatever was streamed before the
// failure stays in the log. Loading is reset on every path.
func (s *Store) Generate(ctx context.Context, prompt string) error {
	s.mu.Lock()
	selected := s.selected
	if selected.IsZero() {
		s.mu.Unlock()
		return ErrNoModelSelected
	}

	s.inflight++
	startedLoading := s.inflight == 1
	user, userIdx := s.conv.AddUserMessage(prompt)
	bot, botIdx := s.conv.AddBotMessage()
	userCopy, botCopy := *user, *bot
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight--
		stoppedLoading := s.inflight == 0
		s.mu.Unlock()
		if stoppedLoading {
			s.emit(Event{Type: EventLoadingChanged, Loading: false})
		}
	}()

	if startedLoading {
		s.emit(Event{Type: EventLoadingChanged, Loading: true})
	}
	s.emit(Event{Type: EventMessageAdded, Index: userIdx, Message: userCopy})
	s.emit(Event{Type: EventMessageAdded, Index: botIdx, Message: botCopy})

	stats := ollama.NewStreamStats()
	request := ollama.GenerateRequest{
		Model:  selected.Name,
		Prompt: prompt,
	}

	err := s.backend.GenerateStream(ctx, request, func(chunk ollama.StreamChunk) {
		if chunk.Content != "" {
			stats.RecordFirstToken()
			s.mu.Lock()
			s.conv.AppendToMessage(botIdx, chunk.Content)
			s.mu.Unlock()
			s.emit(Event{Type: EventFragment, Index: botIdx, Delta: chunk.Content})
		}
		if chunk.Done {
			stats.Finalize(chunk)
		}
	}, func(line string) {
		s.logger.Printf("STREAM_SKIP | model=%s line=%q", selected.Name, util.TruncateRunes(line, 80))
	})

	if stats.EndTime.IsZero() {
		stats.EndTime = time.Now()
	}
	if err != nil {
		s.logger.Printf("GENERATE_ERROR | model=%s error=%v", selected.Name, err)
		err = fmt.Errorf("generate with %s: %w", selected.Name, err)
	}

	s.emit(Event{Type: EventGenerationDone, Index: botIdx, Stats: stats, Err: err})
	return err
}

// =============================================================================
// MODELS
// =============================================================================

// GetModels fetches the models available on the server.
func (s *Store) GetModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	models, err := s.backend.ListModels(ctx)
	if err != nil {
		s.logger.Printf("MODELS_ERROR | error=%v", err)
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// SelectModelByName fetches the model list and selects name from it.
func (s *Store) SelectModelByName(ctx context.Context, name string) (model.SelectedModel, error) {
	models, err := s.GetModels(ctx)
	if err != nil {
		return model.SelectedModel{}, err
	}
	info, ok := model.FindModel(models, name)
	if !ok {
		return model.SelectedModel{}, fmt.Errorf("%w: %s", ollama.ErrModelNotFound, name)
	}
	selected := model.SelectedModelFromInfo(info)
	s.SelectModel(selected)
	return selected, nil
}
