// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the conversation state behind a chat front end.
//
// A Store keeps an append-only message log, a loading flag and the
// selected model, and drives three remote operations through the Ollama
// client: streamed generation, model listing and title derivation.
//
// # Usage
//
//	store := chat.NewStore(ollama.NewClientWithConfig(nil), chat.DefaultConfig())
//	store.SelectModel(model.SelectedModel{Name: "llama3.2"})
//
//	unsubscribe := store.Subscribe(func(ev chat.Event) {
//	    if ev.Type == chat.EventFragment {
//	        fmt.Print(ev.Delta)
//	    }
//	})
//	defer unsubscribe()
//
//	if err := store.Generate(ctx, "Why is the sky blue?"); err != nil {
//	    // already logged; the partial answer stays in store.Messages()
//	}
package chat
