package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Fatalf("路径应为 /bottoken/sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Telegram Send 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if received["text"] != "hello" {
		t.Fatalf("text 不正确: %#v", received)
	}
	if _, ok := received["parse_mode"]; ok {
		t.Fatal("消息应以纯文本发送")
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("ok=false 应报错")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("错误应包含 description: %v", err)
	}
}

func TestTelegramNotifierHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "Unauthorized"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("secret-token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Send(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestTelegramNotifierHidesTokenOnTransportError(t *testing.T) {
	notifier := NewTelegramNotifier("secret-token", "chat", "http://127.0.0.1:1", 200*time.Millisecond, testLogger())
	err := notifier.Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("unreachable endpoint should fail")
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Fatalf("error leaks bot token: %v", err)
	}
}

type fakeDiscord struct {
	channel string
	content string
	err     error
}

func (f *fakeDiscord) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel = channelID
	f.content = content
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func TestDiscordNotifier(t *testing.T) {
	sender := &fakeDiscord{}
	notifier := newDiscordNotifier(sender, "123", testLogger())
	if err := notifier.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if sender.channel != "123" || sender.content != "hello" {
		t.Fatalf("unexpected delivery %+v", sender)
	}

	sender.err = errors.New("missing access")
	if err := notifier.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected discord error")
	}
}

func TestNewDiscordNotifierRequiresCredentials(t *testing.T) {
	if _, err := NewDiscordNotifier("", "123", testLogger()); err == nil {
		t.Fatal("empty token should be rejected")
	}
	if _, err := NewDiscordNotifier("token", "", testLogger()); err == nil {
		t.Fatal("empty channel should be rejected")
	}
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (r *recordingNotifier) Send(ctx context.Context, text string) error {
	r.messages = append(r.messages, text)
	return r.err
}

func TestMultiNotifierAttemptsEveryChannel(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("boom")}
	ok := &recordingNotifier{}
	multi := NewMultiNotifier(failing, nil, ok)

	if multi.Count() != 2 {
		t.Fatalf("nil notifiers should be dropped, got %d", multi.Count())
	}
	err := multi.Send(context.Background(), "msg")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(failing.messages) != 1 || len(ok.messages) != 1 {
		t.Fatal("every channel should receive exactly one attempt")
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
