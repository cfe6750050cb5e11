// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jllopis/rpcagent/pkg/core"
)

// FakeServer is a minimal in-process orchestrator. It queues queries for
// agents to pop and records everything agents send. It is meant for tests
// and local development.
type FakeServer struct {
	// AuthToken, when set, is required as the bearer token on every request.
	AuthToken string

	mu            sync.Mutex
	onResponse    func(PostQueryResponseRequest)
	versionHash   string
	registrations []RegisterAgentRequest
	queue         []PendingQuery
	responses     []PostQueryResponseRequest
	polls         int
	statuses      map[string]int
	userAgents    []string
}

// NewFakeServer creates a fake orchestrator accepting authToken.
func NewFakeServer(authToken string) *FakeServer {
	return &FakeServer{
		AuthToken:   authToken,
		versionHash: uuid.NewString(),
		statuses:    map[string]int{},
	}
}

// Handler returns the HTTP handler for the orchestrator API.
func (s *FakeServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PathRegisterAgent, s.handleRegister)
	mux.HandleFunc(PathPopQuery, s.handlePop)
	mux.HandleFunc(PathPostQueryResponse, s.handlePost)
	return mux
}

// Enqueue adds a query for method and returns its id.
func (s *FakeServer) Enqueue(method string, parameters any, ic core.InvocationContext) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, PendingQuery{
		QueryUUID: id,
		QueryInfo: QueryInfo{Method: method, Parameters: parameters, Context: ic},
	})
	return id
}

// FailWith makes every request to path answer with status. Zero restores
// normal handling.
func (s *FakeServer) FailWith(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.statuses, path)
		return
	}
	s.statuses[path] = status
}

// OnResponse sets a hook called after each query response is recorded.
func (s *FakeServer) OnResponse(fn func(PostQueryResponseRequest)) {
	s.mu.Lock()
	s.onResponse = fn
	s.mu.Unlock()
}

// VersionHash returns the hash handed out on registration.
func (s *FakeServer) VersionHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versionHash
}

// Registrations returns the registrations received so far.
func (s *FakeServer) Registrations() []RegisterAgentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RegisterAgentRequest(nil), s.registrations...)
}

// Responses returns the query responses received so far.
func (s *FakeServer) Responses() []PostQueryResponseRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PostQueryResponseRequest(nil), s.responses...)
}

// Polls returns the number of popQuery requests served.
func (s *FakeServer) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// UserAgents returns the User-Agent header of every request received.
func (s *FakeServer) UserAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userAgents...)
}

// admit checks method, token and forced failures. It reports whether the
// request should be handled.
func (s *FakeServer) admit(w http.ResponseWriter, req *http.Request) bool {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	s.mu.Lock()
	s.userAgents = append(s.userAgents, req.UserAgent())
	status := s.statuses[req.URL.Path]
	s.mu.Unlock()

	if s.AuthToken != "" {
		token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		if token != s.AuthToken {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
	}
	if status != 0 {
		w.WriteHeader(status)
		return false
	}
	return true
}

func (s *FakeServer) handleRegister(w http.ResponseWriter, req *http.Request) {
	if !s.admit(w, req) {
		return
	}
	var in RegisterAgentRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.registrations = append(s.registrations, in)
	hash := s.versionHash
	s.mu.Unlock()
	writeJSON(w, RegisterAgentResponse{VersionHash: hash})
}

func (s *FakeServer) handlePop(w http.ResponseWriter, req *http.Request) {
	if !s.admit(w, req) {
		return
	}
	var in PopQueryRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.polls++
	if in.VersionHash != s.versionHash {
		s.mu.Unlock()
		w.WriteHeader(http.StatusConflict)
		return
	}
	var out PopQueryResponse
	if len(s.queue) > 0 {
		query := s.queue[0]
		s.queue = s.queue[1:]
		out.Query = &query
	}
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *FakeServer) handlePost(w http.ResponseWriter, req *http.Request) {
	if !s.admit(w, req) {
		return
	}
	var in PostQueryResponseRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.responses = append(s.responses, in)
	hook := s.onResponse
	s.mu.Unlock()
	writeJSON(w, map[string]bool{"success": true})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if hook != nil {
		hook(in)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}
