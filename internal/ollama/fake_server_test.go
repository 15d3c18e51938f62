// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeOllama is an in-process stand-in for the Ollama HTTP API.
type fakeOllama struct {
	t *testing.T

	mu        sync.Mutex
	stored    map[string]int64
	pullFail  string
	chatFail  string
	keepAlive []any
	lastChat  ChatRequest
	deleted   []string
}

func newFakeOllama(t *testing.T, stored ...string) (*fakeOllama, *httptest.Server) {
	t.Helper()
	f := &fakeOllama{t: t, stored: make(map[string]int64)}
	for _, name := range stored {
		f.stored[name] = 1600 << 20
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "Ollama is running")
	})
	mux.HandleFunc("/api/tags", f.tags)
	mux.HandleFunc("/api/show", f.show)
	mux.HandleFunc("/api/pull", f.pull)
	mux.HandleFunc("/api/generate", f.generate)
	mux.HandleFunc("/api/chat", f.chat)
	mux.HandleFunc("/api/delete", f.delete)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeOllama) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.stored[name]
	return ok
}

func decodeModel(r *http.Request) string {
	var req ModelRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req.Model
}

func notFound(w http.ResponseWriter, name string) {
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, `{"error":"model '%s' not found"}`, name)
}

func (f *fakeOllama) tags(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var resp ListModelsResponse
	for name, size := range f.stored {
		resp.Models = append(resp.Models, ModelInfo{Name: name, Size: size})
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeOllama) show(w http.ResponseWriter, r *http.Request) {
	name := decodeModel(r)
	if !f.has(name) {
		notFound(w, name)
		return
	}
	fmt.Fprint(w, `{"details":{"family":"gemma2","parameter_size":"2.6B","quantization_level":"Q4_0"}}`)
}

func (f *fakeOllama) pull(w http.ResponseWriter, r *http.Request) {
	var req PullRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	fail := f.pullFail
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-ndjson")
	fmt.Fprintln(w, `{"status":"pulling manifest"}`)
	if fail != "" {
		fmt.Fprintf(w, "{\"error\":%q}\n", fail)
		return
	}
	fmt.Fprintln(w, `{"status":"pulling 8eeb52dfb3bb","digest":"sha256:8eeb","total":1000,"completed":250}`)
	fmt.Fprintln(w, `{"status":"pulling 8eeb52dfb3bb","digest":"sha256:8eeb","total":1000,"completed":1000}`)
	fmt.Fprintln(w, `{"status":"pulling 097a36493f71","digest":"sha256:097a","total":3000,"completed":0}`)
	fmt.Fprintln(w, `{"status":"pulling 097a36493f71","digest":"sha256:097a","total":3000,"completed":3000}`)
	fmt.Fprintln(w, `{"status":"verifying sha256 digest"}`)
	fmt.Fprintln(w, `{"status":"success"}`)

	f.mu.Lock()
	f.stored[req.Model] = 1000
	f.mu.Unlock()
}

func (f *fakeOllama) generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if !f.has(req.Model) {
		notFound(w, req.Model)
		return
	}
	f.mu.Lock()
	f.keepAlive = append(f.keepAlive, req.KeepAlive)
	f.mu.Unlock()
	fmt.Fprintf(w, `{"model":%q,"done":true,"done_reason":"load"}`, req.Model)
}

func (f *fakeOllama) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.lastChat = req
	fail := f.chatFail
	f.mu.Unlock()

	if fail != "" {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `{"error":%q}`, fail)
		return
	}
	last := req.Messages[len(req.Messages)-1].Content
	_ = json.NewEncoder(w).Encode(ChatResponse{
		Model:           req.Model,
		Message:         Message{Role: "assistant", Content: "echo: " + last},
		Done:            true,
		DoneReason:      "stop",
		PromptEvalCount: 12,
		EvalCount:       3,
		EvalDuration:    1e9,
	})
}

func (f *fakeOllama) delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := decodeModel(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.stored[name]; !ok {
		notFound(w, name)
		return
	}
	delete(f.stored, name)
	f.deleted = append(f.deleted, name)
}

func testClient(srv *httptest.Server) *Client {
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
}
