package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("model = %v", req["model"])
		}
		if req["stream"] == true {
			t.Error("Complete must not request streaming")
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "查询到 5 条记录"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 5*time.Second)

	got, err := client.Complete(context.Background(), []Message{
		{Role: "user", Content: "有多少任务"},
	}, 0.7)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "查询到 5 条记录" {
		t.Errorf("content = %q", got)
	}
}

func TestClient_Complete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model overloaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "empty choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "not json")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.URL, "k", "m", 5*time.Second)
			if _, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.7); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func sseChunk(t *testing.T, delta map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{{"delta": delta}},
	})
	if err != nil {
		t.Fatalf("marshal chunk: %v", err)
	}
	return "data: " + string(data) + "\n\n"
}

func TestClient_Stream_Tokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["stream"] != true {
			t.Error("Stream must set stream=true")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk(t, map[string]interface{}{"content": "你"}))
		fmt.Fprint(w, sseChunk(t, map[string]interface{}{"content": "好"}))
		fmt.Fprint(w, ": keep-alive comment\n\n")
		fmt.Fprint(w, sseChunk(t, map[string]interface{}{"content": "！"}))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "m", 5*time.Second)

	var tokens []string
	err := client.Stream(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.2, StreamHandler{
		OnContent: func(token string) error {
			tokens = append(tokens, token)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if strings.Join(tokens, "") != "你好！" {
		t.Errorf("tokens = %v", tokens)
	}
	if len(tokens) != 3 {
		t.Errorf("expected 3 individual tokens, got %d", len(tokens))
	}
}

func TestClient_Stream_ToolCallFragments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk(t, map[string]interface{}{
			"tool_calls": []map[string]interface{}{{
				"index":    0,
				"id":       "call_1",
				"type":     "function",
				"function": map[string]interface{}{"name": "get_tasks", "arguments": `{"sta`},
			}},
		}))
		fmt.Fprint(w, sseChunk(t, map[string]interface{}{
			"tool_calls": []map[string]interface{}{{
				"index":    0,
				"function": map[string]interface{}{"arguments": `tus":"pending"}`},
			}},
		}))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "m", 5*time.Second)

	var fragments []ToolCallFragment
	err := client.Stream(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.7, StreamHandler{
		OnToolCalls: func(calls []ToolCallFragment) error {
			fragments = append(fragments, calls...)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if len(fragments) != 2 {
		t.Fatalf("got %d fragments, want 2", len(fragments))
	}
	if fragments[0].Function.Name != "get_tasks" {
		t.Errorf("first fragment name = %q", fragments[0].Function.Name)
	}
	if fragments[0].Index == nil || *fragments[0].Index != 0 || fragments[1].Index == nil || *fragments[1].Index != 0 {
		t.Error("fragments of one call must share an index")
	}
	// Receiver-side reassembly contract: concatenating argument
	// fragments with the same index yields the full JSON value.
	joined := fragments[0].Function.Arguments + fragments[1].Function.Arguments
	var args map[string]string
	if err := json.Unmarshal([]byte(joined), &args); err != nil {
		t.Fatalf("concatenated arguments are not valid JSON: %v", err)
	}
	if args["status"] != "pending" {
		t.Errorf("reassembled arguments = %v", args)
	}
}

func TestClient_Stream_HandlerAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 100; i++ {
			fmt.Fprint(w, sseChunk(t, map[string]interface{}{"content": "x"}))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "m", 5*time.Second)

	count := 0
	err := client.Stream(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.7, StreamHandler{
		OnContent: func(string) error {
			count++
			if count == 3 {
				return fmt.Errorf("client went away")
			}
			return nil
		},
	})
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if count != 3 {
		t.Errorf("handler called %d times after abort, want 3", count)
	}
}
