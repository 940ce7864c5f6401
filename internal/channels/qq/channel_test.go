package qq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/napclaw/internal/bus"
	"github.com/nextlevelbuilder/napclaw/internal/channels"
	"github.com/nextlevelbuilder/napclaw/internal/channels/qq/onebot"
	"github.com/nextlevelbuilder/napclaw/internal/config"
)

// sendRecorder captures send_private_msg / send_group_msg calls.
type sendRecorder struct {
	mu    sync.Mutex
	calls []recordedSend
}

type recordedSend struct {
	action   string
	params   map[string]any
	segments []onebot.Segment
}

func (r *sendRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		action := strings.TrimPrefix(req.URL.Path, "/")
		var params map[string]any
		if err := json.NewDecoder(req.Body).Decode(&params); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var segments []onebot.Segment
		if raw, err := json.Marshal(params["message"]); err == nil {
			json.Unmarshal(raw, &segments)
		}

		r.mu.Lock()
		r.calls = append(r.calls, recordedSend{action: action, params: params, segments: segments})
		r.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok", "retcode": 0,
			"data": map[string]any{"message_id": 99},
		})
	})
}

func (r *sendRecorder) all() []recordedSend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedSend(nil), r.calls...)
}

// testChannel wires a Channel around a stub bridge without starting a monitor.
func testChannel(t *testing.T, acct Account) (*Channel, *sendRecorder) {
	t.Helper()
	rec := &sendRecorder{}
	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	c := New(cfg, bus.New())
	c.accounts[acct.ID] = &runningAccount{
		account: acct,
		client:  onebot.NewClient(srv.URL, acct.AccessToken),
	}
	return c, rec
}

func segmentTypes(segments []onebot.Segment) []string {
	types := make([]string, 0, len(segments))
	for _, s := range segments {
		types = append(types, s.Type)
	}
	return types
}

func TestSendGroupTarget(t *testing.T) {
	c, rec := testChannel(t, Account{ID: "default", TextChunkLimit: 4000})

	err := c.Send(context.Background(), bus.OutboundMessage{
		Channel: ChannelName,
		ChatID:  "group:555",
		Content: "hello group",
	})
	if err != nil {
		t.Fatal(err)
	}

	calls := rec.all()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].action != "send_group_msg" {
		t.Errorf("action = %q", calls[0].action)
	}
	if calls[0].params["group_id"] != "555" {
		t.Errorf("group_id = %v", calls[0].params["group_id"])
	}
}

func TestSendDirectTarget(t *testing.T) {
	c, rec := testChannel(t, Account{ID: "default", TextChunkLimit: 4000})

	err := c.Send(context.Background(), bus.OutboundMessage{
		Channel: ChannelName,
		ChatID:  "user:123456789",
		Content: "hello",
	})
	if err != nil {
		t.Fatal(err)
	}

	calls := rec.all()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].action != "send_private_msg" {
		t.Errorf("action = %q", calls[0].action)
	}
	if calls[0].params["user_id"] != "123456789" {
		t.Errorf("user_id = %v", calls[0].params["user_id"])
	}
}

func TestSendBareNumericGoesToGroup(t *testing.T) {
	c, rec := testChannel(t, Account{ID: "default", TextChunkLimit: 4000})

	if err := c.Send(context.Background(), bus.OutboundMessage{
		Channel: ChannelName, ChatID: "555", Content: "hi",
	}); err != nil {
		t.Fatal(err)
	}
	if calls := rec.all(); calls[0].action != "send_group_msg" {
		t.Errorf("action = %q, want group path for bare numeric target", calls[0].action)
	}
}

func TestSendSegmentOrder(t *testing.T) {
	c, rec := testChannel(t, Account{ID: "default", ReplyToMode: "first", TextChunkLimit: 4000})

	err := c.Send(context.Background(), bus.OutboundMessage{
		Channel:  ChannelName,
		ChatID:   "user:1",
		Content:  "caption",
		MediaURL: "https://example.com/cat.png",
		Metadata: map[string]string{"reply_to": "42"},
	})
	if err != nil {
		t.Fatal(err)
	}

	calls := rec.all()
	got := segmentTypes(calls[0].segments)
	want := []string{"reply", "image", "text"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("segment order = %v, want %v", got, want)
	}
	if calls[0].segments[0].Data["id"] != "42" {
		t.Errorf("reply id = %v", calls[0].segments[0].Data["id"])
	}
}

func TestSendReplyToModes(t *testing.T) {
	tests := []struct {
		mode       string
		chunks     int
		wantReplys []bool // per chunk
	}{
		{"off", 2, []bool{false, false}},
		{"", 2, []bool{false, false}},
		{"first", 2, []bool{true, false}},
		{"all", 2, []bool{true, true}},
	}

	for _, tt := range tests {
		t.Run("mode_"+tt.mode, func(t *testing.T) {
			c, rec := testChannel(t, Account{ID: "default", ReplyToMode: tt.mode, TextChunkLimit: 4})

			err := c.Send(context.Background(), bus.OutboundMessage{
				Channel:  ChannelName,
				ChatID:   "user:1",
				Content:  "aaaabbbb", // two chunks at limit 4
				Metadata: map[string]string{"reply_to": "42"},
			})
			if err != nil {
				t.Fatal(err)
			}

			calls := rec.all()
			if len(calls) != tt.chunks {
				t.Fatalf("calls = %d, want %d", len(calls), tt.chunks)
			}
			for i, call := range calls {
				hasReply := len(call.segments) > 0 && call.segments[0].Type == "reply"
				if hasReply != tt.wantReplys[i] {
					t.Errorf("chunk %d reply segment = %v, want %v", i, hasReply, tt.wantReplys[i])
				}
			}
		})
	}
}

func TestSendMediaOnly(t *testing.T) {
	c, rec := testChannel(t, Account{ID: "default", TextChunkLimit: 4000})

	err := c.Send(context.Background(), bus.OutboundMessage{
		Channel:  ChannelName,
		ChatID:   "user:1",
		MediaURL: "https://example.com/cat.png",
	})
	if err != nil {
		t.Fatal(err)
	}

	calls := rec.all()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if got := segmentTypes(calls[0].segments); !reflect.DeepEqual(got, []string{"image"}) {
		t.Errorf("segments = %v", got)
	}
}

func TestSendEmptyTargetRejected(t *testing.T) {
	c, _ := testChannel(t, Account{ID: "default", TextChunkLimit: 4000})

	err := c.Send(context.Background(), bus.OutboundMessage{Channel: ChannelName, Content: "hi"})
	if err == nil {
		t.Fatal("expected error for empty target")
	}
}

func TestSendRoutesToNamedAccount(t *testing.T) {
	c, recDefault := testChannel(t, Account{ID: "default", TextChunkLimit: 4000})

	recWork := &sendRecorder{}
	srv := httptest.NewServer(recWork.handler())
	t.Cleanup(srv.Close)
	c.accounts["work"] = &runningAccount{
		account: Account{ID: "work", TextChunkLimit: 4000},
		client:  onebot.NewClient(srv.URL, ""),
	}

	err := c.Send(context.Background(), bus.OutboundMessage{
		Channel:  ChannelName,
		ChatID:   "user:1",
		Content:  "hi",
		Metadata: map[string]string{"account_id": "work"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(recWork.all()) != 1 || len(recDefault.all()) != 0 {
		t.Error("send should go through the named account's bridge")
	}
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"empty", "", 10, nil},
		{"fits", "hello", 10, []string{"hello"}},
		{"hard split", "abcdefgh", 4, []string{"abcd", "efgh"}},
		{"prefers newline past midpoint", "abcd\nefgh", 6, []string{"abcd\n", "efgh"}},
		{"ignores early newline", "a\nbcdefg", 6, []string{"a\nbcde", "fg"}},
		{"no limit", "abcdef", 0, []string{"abcdef"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chunkText(tt.text, tt.limit); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("chunkText(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
		})
	}
}

func TestAccountPolicy(t *testing.T) {
	ch := New(config.Default(), nil)

	tests := []struct {
		name     string
		acct     Account
		chatType string
		sender   string
		want     bool
	}{
		{"open dm", Account{DMPolicy: "open"}, "direct", "1", true},
		{"unset defaults open", Account{}, "direct", "1", true},
		{"disabled dm", Account{DMPolicy: "disabled"}, "direct", "1", false},
		{"allowlist hit", Account{DMPolicy: "allowlist", AllowFrom: []string{"1"}}, "direct", "1", true},
		{"allowlist miss", Account{DMPolicy: "allowlist", AllowFrom: []string{"2"}}, "direct", "1", false},
		{"allowlist at-prefix", Account{DMPolicy: "allowlist", AllowFrom: []string{"@1"}}, "direct", "1", true},
		{"group policy independent", Account{DMPolicy: "disabled", GroupPolicy: "open"}, "group", "1", true},
		{"group disabled", Account{GroupPolicy: "disabled"}, "group", "1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ch.CheckPolicy(tt.chatType, tt.acct.DMPolicy, tt.acct.GroupPolicy, tt.sender, tt.acct.AllowFrom)
			if got != tt.want {
				t.Errorf("CheckPolicy = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccountPolicyFallsBackToChannelAllowlist(t *testing.T) {
	cfg := config.Default()
	cfg.Channels.QQ.AllowFrom = config.FlexibleStringSlice{"42"}
	ch := New(cfg, nil)

	if !ch.CheckPolicy("direct", "allowlist", "", "42", nil) {
		t.Error("sender on the channel-level allowlist should pass")
	}
	if ch.CheckPolicy("direct", "allowlist", "", "99", nil) {
		t.Error("sender off the channel-level allowlist should be rejected")
	}
}

// Compile-time check that Channel satisfies the channel contract.
var _ channels.Channel = (*Channel)(nil)
