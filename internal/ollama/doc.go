// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama API.
//
// The client speaks to /api/chat in both streaming and non-streaming
// form, lists installed models via /api/tags, and attaches base64
// images to messages for vision models. Everything runs over plain
// HTTP against localhost; there is no auth and no TLS.
package ollama
