package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPush_SendsAuthorizedJSON(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := &Client{Token: "secret-token", BaseURL: srv.URL}
	if err := c.Push(context.Background(), "U123", "hello"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if gotPath != "/v2/bot/message/push" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody.To != "U123" || len(gotBody.Messages) != 1 || gotBody.Messages[0].Text != "hello" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
	if gotBody.Messages[0].Type != "text" {
		t.Fatalf("expected text message, got %q", gotBody.Messages[0].Type)
	}
}

func TestBroadcast_OmitsRecipient(t *testing.T) {
	var raw []byte
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &Client{Token: "tok", BaseURL: srv.URL}
	if err := c.Broadcast(context.Background(), "digest"); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if gotPath != "/v2/bot/message/broadcast" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if strings.Contains(string(raw), `"to"`) {
		t.Fatalf("broadcast body must not carry a recipient: %s", raw)
	}
}

func TestPush_SurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer srv.Close()

	c := &Client{Token: "bad", BaseURL: srv.URL}
	err := c.Push(context.Background(), "U1", "x")
	if err == nil || !strings.Contains(err.Error(), "invalid token") {
		t.Fatalf("expected API error message, got %v", err)
	}
}

func TestPush_EmptyRecipientRejected(t *testing.T) {
	c := &Client{Token: "tok"}
	if err := c.Push(context.Background(), "  ", "x"); err == nil {
		t.Fatalf("expected error for empty recipient")
	}
}

func TestPush_TruncatesLongText(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body pushRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = body.Messages[0].Text
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Multi-byte runes ensure truncation counts characters, not bytes.
	long := strings.Repeat("あ", MaxMessageChars+50)
	c := &Client{Token: "tok", BaseURL: srv.URL}
	if err := c.Push(context.Background(), "U1", long); err != nil {
		t.Fatalf("push: %v", err)
	}
	if n := len([]rune(got)); n != MaxMessageChars {
		t.Fatalf("expected %d runes, got %d", MaxMessageChars, n)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("あいうえお", 3); got != "あいう" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("x", 0); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}
