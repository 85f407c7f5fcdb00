// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// FakeGemini is a stand-in for the Generative Language API.
type FakeGemini struct {
	server *httptest.Server

	mu          sync.Mutex
	models      []string
	answer      string
	unavailable map[string]bool
	calls       []string
}

// NewFakeGemini starts a fake API answering every generateContent call with answer.
func NewFakeGemini(answer string) *FakeGemini {
	f := &FakeGemini{answer: answer, unavailable: map[string]bool{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// URL is the API root to configure as the Gemini base URL.
func (f *FakeGemini) URL() string {
	return f.server.URL + "/v1beta"
}

// Close stops the server.
func (f *FakeGemini) Close() {
	f.server.Close()
}

// SetAnswer changes the text returned by generateContent.
func (f *FakeGemini) SetAnswer(answer string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answer = answer
}

// SetModels sets the ids returned by the model listing.
func (f *FakeGemini) SetModels(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = ids
}

// MarkUnavailable makes model answer 404 "not found".
func (f *FakeGemini) MarkUnavailable(model string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable[model] = true
}

// Calls returns the models generateContent was called with, in order.
func (f *FakeGemini) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeGemini) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v1beta/models")
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodGet && path == "" {
		models := make([]map[string]string, 0, len(f.models))
		for _, id := range f.models {
			models = append(models, map[string]string{"name": "models/" + id})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"models": models})
		return
	}

	model, ok := strings.CutSuffix(strings.TrimPrefix(path, "/"), ":generateContent")
	if r.Method != http.MethodPost || !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	f.calls = append(f.calls, model)

	if f.unavailable[model] {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error":{"code":404,"message":"models/%s is not found for API version v1beta","status":"NOT_FOUND"}}`, model)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]string{"text": f.answer}},
				},
			},
		},
	})
}
