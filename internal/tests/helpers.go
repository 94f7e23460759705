package tests

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/iTrooz/ask-relay/internal/cache"
	"github.com/iTrooz/ask-relay/internal/config"
	"github.com/iTrooz/ask-relay/internal/llm"
	"github.com/iTrooz/ask-relay/internal/relay"
	"github.com/iTrooz/ask-relay/internal/server"
	"github.com/iTrooz/ask-relay/internal/upstream"
)

// fixture_upstream creates a test upstream API that requires the given bearer token
func fixture_upstream(token, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, requ *http.Request) {
		if requ.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
}

// fixture_completions creates a chat-completion API answering every request with answer.
// Each received request body is sent on the returned channel.
func fixture_completions(answer string) (*httptest.Server, <-chan []byte) {
	received := make(chan []byte, 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, requ *http.Request) {
		if requ.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(requ.Body)
		received <- body

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "` + answer + `"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
}`))
	}))
	return server, received
}

// fixture_config creates a test config using a disk cache in tempDir, with optional rules
func fixture_config(tempDir, llmURL string, rules *config.RulesConfig) *config.Config {
	cfg := config.Default()
	cfg.Cache.Backend = config.BackendDisk
	cfg.Cache.Folder = tempDir
	cfg.Cache.TTL = "1h"
	cfg.LLM.BaseURL = llmURL
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.Timeout = "5s"
	cfg.Fetch.Timeout = "5s"

	if rules != nil {
		cfg.Rules = *rules
	}

	return cfg
}

// fixture_relay wires a complete relay from cfg and serves it on a test server
func fixture_relay(cfg *config.Config) (*httptest.Server, cache.Store, error) {
	ctx := context.Background()

	store, err := cache.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, nil, err
	}

	completer, err := llm.NewOpenAI(ctx, cfg.LLM, 5*time.Second)
	if err != nil {
		return nil, nil, err
	}

	rules := upstream.NewRules(cfg.Rules)
	service := relay.New(
		store,
		cfg.Cache.Namespace,
		upstream.NewClient(5*time.Second, cfg.Fetch.MaxBodyBytes, rules),
		rules,
		completer,
	)

	relayServer, err := server.New(cfg, service)
	if err != nil {
		return nil, nil, err
	}

	return httptest.NewServer(relayServer.Handler()), store, nil
}
