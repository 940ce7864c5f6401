package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nextlevelbuilder/napclaw/internal/config"
	"github.com/nextlevelbuilder/napclaw/internal/dispatch"
)

func TestRespondRoundTrip(t *testing.T) {
	var gotReq dispatch.Request
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(dispatch.Outcome{
			Replies: []dispatch.Reply{{Text: "hello back"}},
		})
	}))
	defer srv.Close()

	c := NewClient(config.AgentConfig{Endpoint: srv.URL, APIKey: "secret"})
	outcome, err := c.Respond(context.Background(), dispatch.Request{
		RunID:   "r1",
		AgentID: "default",
		ChatID:  "user:1",
		Content: "hello",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Replies) != 1 || outcome.Replies[0].Text != "hello back" {
		t.Errorf("outcome = %+v", outcome)
	}
	if gotReq.Content != "hello" || gotReq.AgentID != "default" {
		t.Errorf("request = %+v", gotReq)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
}

func TestRespondNoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(dispatch.Outcome{})
	}))
	defer srv.Close()

	c := NewClient(config.AgentConfig{Endpoint: srv.URL})
	if _, err := c.Respond(context.Background(), dispatch.Request{}); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "" {
		t.Errorf("auth = %q, want none", gotAuth)
	}
}

func TestRespondBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(config.AgentConfig{Endpoint: srv.URL})
	if _, err := c.Respond(context.Background(), dispatch.Request{}); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestRespondRequiresEndpoint(t *testing.T) {
	c := NewClient(config.AgentConfig{})
	if _, err := c.Respond(context.Background(), dispatch.Request{}); err == nil {
		t.Fatal("expected error without endpoint")
	}
}
