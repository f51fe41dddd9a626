// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the rigrun-chat configuration.
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RIGRUN_CHAT_*)
//   - ~/.rigrun-chat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := ollama.NewClientWithConfig(cfg.ClientConfig())
//	store := chat.NewStore(client, cfg.StoreConfig())
package config
