package onebot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// bridgeStub records incoming command calls and serves canned responses.
type bridgeStub struct {
	mu    sync.Mutex
	calls []stubCall

	loginStatus  int
	statusFails  bool
	statusOnline bool
	loginHangs   bool
}

type stubCall struct {
	Action string
	Auth   string
	Body   map[string]any
}

func (b *bridgeStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Path[1:]

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		b.calls = append(b.calls, stubCall{Action: action, Auth: r.Header.Get("Authorization"), Body: body})
		b.mu.Unlock()

		switch action {
		case "send_private_msg", "send_group_msg":
			json.NewEncoder(w).Encode(map[string]any{
				"status": "ok", "retcode": 0,
				"data": map[string]any{"message_id": 456},
			})
		case "get_login_info":
			if b.loginHangs {
				time.Sleep(2 * time.Second)
			}
			if b.loginStatus != 0 {
				w.WriteHeader(b.loginStatus)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status": "ok", "retcode": 0,
				"data": map[string]any{"user_id": 10001, "nickname": "bot"},
			})
		case "get_status":
			if b.statusFails {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status": "ok", "retcode": 0,
				"data": map[string]any{"online": b.statusOnline},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (b *bridgeStub) lastCall(t *testing.T) stubCall {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.calls) == 0 {
		t.Fatal("no calls recorded")
	}
	return b.calls[len(b.calls)-1]
}

func TestSendPrivateMsg(t *testing.T) {
	stub := &bridgeStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	id, err := c.SendPrivateMsg(context.Background(), "123", []Segment{TextSegment("hi")})
	if err != nil {
		t.Fatal(err)
	}
	if id != "456" {
		t.Errorf("message id = %q, want 456", id)
	}

	call := stub.lastCall(t)
	if call.Action != "send_private_msg" {
		t.Errorf("action = %q", call.Action)
	}
	if call.Auth != "Bearer tok" {
		t.Errorf("auth = %q, want bearer token", call.Auth)
	}
	if call.Body["user_id"] != "123" {
		t.Errorf("user_id = %v", call.Body["user_id"])
	}
}

func TestSendGroupMsg(t *testing.T) {
	stub := &bridgeStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.SendGroupMsg(context.Background(), "555", []Segment{TextSegment("ok")}); err != nil {
		t.Fatal(err)
	}

	call := stub.lastCall(t)
	if call.Action != "send_group_msg" || call.Body["group_id"] != "555" {
		t.Errorf("call = %+v, want send_group_msg group_id=555", call)
	}
	if call.Auth != "" {
		t.Errorf("auth header sent without token: %q", call.Auth)
	}
}

func TestSendFailureReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.SendPrivateMsg(context.Background(), "1", nil); err == nil {
		t.Fatal("expected error on non-2xx")
	}
}

func TestProbeHealthy(t *testing.T) {
	stub := &bridgeStub{statusOnline: true}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	res := NewClient(srv.URL, "").Probe(context.Background(), time.Second)
	if !res.OK {
		t.Fatalf("probe failed: %v", res.Err)
	}
	if res.SelfID != "10001" || res.Nickname != "bot" || res.Status != "online" {
		t.Errorf("probe = %+v", res)
	}
}

func TestProbeStatusDegrades(t *testing.T) {
	stub := &bridgeStub{statusFails: true}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	res := NewClient(srv.URL, "").Probe(context.Background(), time.Second)
	if !res.OK {
		t.Fatalf("probe must survive get_status failure: %v", res.Err)
	}
	if res.Status != "unknown" {
		t.Errorf("Status = %q, want degraded \"unknown\"", res.Status)
	}
}

func TestProbeIdentityFailureFailsProbe(t *testing.T) {
	stub := &bridgeStub{loginStatus: http.StatusUnauthorized}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	res := NewClient(srv.URL, "bad").Probe(context.Background(), time.Second)
	if res.OK || res.Err == nil {
		t.Errorf("probe = %+v, want failure", res)
	}
}

func TestProbeTimeoutAborts(t *testing.T) {
	stub := &bridgeStub{loginHangs: true}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	start := time.Now()
	res := NewClient(srv.URL, "").Probe(context.Background(), 50*time.Millisecond)
	if res.OK {
		t.Fatal("probe should time out")
	}
	if time.Since(start) > time.Second {
		t.Error("probe did not abort on timeout")
	}
}
