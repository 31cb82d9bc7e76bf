// SPDX-License-Identifier: AGPL-3.0
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ollama

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cogscaffold/core/pkg/model"
)

func TestClient_GenerateReturnsTextAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content == "" {
			t.Fatalf("expected one concatenated user message, got %+v", req.Messages)
		}
		resp := chatResponse{}
		resp.Message.Content = "paris"
		resp.PromptEvalCount = 10
		resp.EvalCount = 2
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "test-model"})
	resp, err := c.Generate(t.Context(), &model.Request{UserMessage: "capital of france?"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "paris" {
		t.Errorf("expected text %q, got %q", "paris", resp.Text)
	}
	if resp.Usage.PromptTokens != 10 || resp.Usage.CompletionTokens != 2 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestClient_GenerateMapsToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := chatResponse{}
		resp.Message.ToolCalls = []chatToolCall{{}}
		resp.Message.ToolCalls[0].Function.Name = "remember"
		resp.Message.ToolCalls[0].Function.Arguments = map[string]any{"content": "x"}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	resp, err := c.Generate(t.Context(), &model.Request{UserMessage: "remember x"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "remember" {
		t.Fatalf("expected mapped tool call, got %+v", resp.ToolCalls)
	}
}

func TestClient_GenerateSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Error: "model not found"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 0})
	_, err := c.Generate(t.Context(), &model.Request{UserMessage: "hi"})
	if err == nil {
		t.Fatal("expected an error when the API reports one")
	}
}

func TestClient_GenerateRetriesOnFailureThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := chatResponse{}
		resp.Message.Content = "recovered"
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 2})
	resp, err := c.Generate(t.Context(), &model.Request{UserMessage: "hi"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "recovered" {
		t.Errorf("expected the retried call to succeed, got %q", resp.Text)
	}
	if attempts != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", attempts)
	}
}

func TestClient_Name(t *testing.T) {
	c := New(Config{Model: "llama3.2"})
	if c.Name() != "llama3.2" {
		t.Errorf("expected Name() to report the configured model, got %q", c.Name())
	}
}
