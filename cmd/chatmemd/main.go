package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/hanbit-ai/chatmemory-go/internal/agent"
	"github.com/hanbit-ai/chatmemory-go/internal/config"
	"github.com/hanbit-ai/chatmemory-go/internal/history"
	"github.com/hanbit-ai/chatmemory-go/internal/llm"
	"github.com/hanbit-ai/chatmemory-go/internal/logger"
	"github.com/hanbit-ai/chatmemory-go/internal/prompt"
	"github.com/hanbit-ai/chatmemory-go/internal/tokens"
)

type chatRequest struct {
	UserID    string `json:"user_id"`
	OrgnID    string `json:"orgn_id"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

func main() {
	// Load configuration; a missing required key is fatal before anything runs.
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	// Token counter; a scheme whose vocabulary cannot load is fatal too.
	counter, err := tokens.New(tokens.Options{
		UseLocalModel: cfg.Tokenizer.UseLocalModel,
		Encoding:      cfg.Tokenizer.Encoding,
		TokenizerPath: cfg.Tokenizer.TokenizerPath,
	})
	if err != nil {
		logger.L.Error("failed to initialize token counter", "error", err)
		os.Exit(1)
	}

	store, err := history.New(history.Options{
		DSN:      cfg.Database.DSN,
		AsyncDSN: cfg.Database.AsyncDSN,
		Counter:  counter,
	})
	if err != nil {
		logger.L.Error("failed to open history store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	chat := llm.NewChat(llm.NewClient(cfg.LLM), cfg.LLM)

	template := &prompt.Template{
		Entries: []prompt.Entry{
			{Role: history.RoleSystem, Text: "You are a helpful assistant."},
			{Role: history.RoleUser, Text: "{message}"},
		},
		Memory: store,
	}
	chatAgent := agent.New(chat, store, template)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.UserID == "" || req.OrgnID == "" || req.Message == "" {
			http.Error(w, "user_id, orgn_id and message are required", http.StatusBadRequest)
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}
		scope := history.Scope{UserID: req.UserID, OrgnID: req.OrgnID, SessionID: req.SessionID}

		reply, err := chatAgent.Process(r.Context(), scope, req.Message, nil)
		if err != nil {
			logger.L.Error("process error", "error", err, "session_id", req.SessionID)
			http.Error(w, "failed to process request", http.StatusInternalServerError)
			return
		}

		writeJSON(w, chatResponse{SessionID: req.SessionID, Reply: reply})
	})

	mux.HandleFunc("GET /history", func(w http.ResponseWriter, r *http.Request) {
		scope, ok := scopeFromQuery(w, r)
		if !ok {
			return
		}
		turns, err := store.HistoryContext(r.Context(), scope)
		if err != nil {
			logger.L.Error("history error", "error", err, "session_id", scope.SessionID)
			http.Error(w, "failed to fetch history", http.StatusInternalServerError)
			return
		}
		writeJSON(w, turns)
	})

	mux.HandleFunc("DELETE /history", func(w http.ResponseWriter, r *http.Request) {
		scope, ok := scopeFromQuery(w, r)
		if !ok {
			return
		}
		if err := store.ClearHistoryContext(r.Context(), scope); err != nil {
			logger.L.Error("clear history error", "error", err, "session_id", scope.SessionID)
			http.Error(w, "failed to clear history", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.L.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}

func scopeFromQuery(w http.ResponseWriter, r *http.Request) (history.Scope, bool) {
	q := r.URL.Query()
	scope := history.Scope{
		UserID:    q.Get("user_id"),
		OrgnID:    q.Get("orgn_id"),
		SessionID: q.Get("session_id"),
	}
	if scope.UserID == "" || scope.OrgnID == "" || scope.SessionID == "" {
		http.Error(w, "user_id, orgn_id and session_id are required", http.StatusBadRequest)
		return history.Scope{}, false
	}
	return scope, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Warn("write response", "error", err)
	}
}
