// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package graphql

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Server is the /graphql HTTP endpoint: POST with the standard
// {query, operationName, variables} body.
type Server struct {
	executor *Executor
}

func NewServer(executor *Executor) *Server {
	return &Server{executor: executor}
}

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	res := s.executor.Execute(r.Context(), req.Query, req.OperationName, req.Variables)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Debug().Err(err).Msg("graphql response write failed")
	}
}
