package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("token-123", "555000", slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.baseURL = srv.URL

	if err := c.SendText(context.Background(), "554399990000", "olá"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if gotPath != "/555000/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody["messaging_product"] != "whatsapp" || gotBody["to"] != "554399990000" {
		t.Errorf("body = %v", gotBody)
	}
	text, _ := gotBody["text"].(map[string]any)
	if text["body"] != "olá" {
		t.Errorf("text body = %v", text)
	}
}

func TestSendTextErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad", "555000", slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.baseURL = srv.URL

	if err := c.SendText(context.Background(), "554399990000", "olá"); err == nil {
		t.Fatal("want error on 401 response")
	}
}

func TestExtractMessage(t *testing.T) {
	raw := `{"entry":[{"changes":[{"value":{"messages":[{"from":"554399990000","type":"text","text":{"body":"gastei 10 reais"}}]}}]}]}`
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	from, body, ok := ExtractMessage(p)
	if !ok {
		t.Fatal("want ok")
	}
	if from != "554399990000" || body != "gastei 10 reais" {
		t.Errorf("from=%q body=%q", from, body)
	}
}

func TestExtractMessageNonText(t *testing.T) {
	raw := `{"entry":[{"changes":[{"value":{"messages":[{"from":"554399990000","type":"image"}]}}]}]}`
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, _, ok := ExtractMessage(p); ok {
		t.Error("image message must not extract")
	}
}

func TestExtractMessageStatusUpdate(t *testing.T) {
	var p Payload
	if err := json.Unmarshal([]byte(`{"entry":[{"changes":[{"value":{}}]}]}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, _, ok := ExtractMessage(p); ok {
		t.Error("payload without messages must not extract")
	}
}

func TestVerifyToken(t *testing.T) {
	if !VerifyToken("abc", "abc") {
		t.Error("matching tokens must verify")
	}
	if VerifyToken("abc", "xyz") {
		t.Error("mismatched tokens must not verify")
	}
	if VerifyToken("", "") {
		t.Error("empty expected token must never verify")
	}
}
