package provider

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/notifyhub/dispatch/internal/domain"
)

func emailNotification(payload string) *domain.Notification {
	now := domain.NowMillis()
	return &domain.Notification{
		ID:          "n-1",
		UserID:      "user-1",
		MessageType: domain.MessageTypeEmail,
		Provider:    domain.ProviderLocal,
		Status:      domain.StatusPending,
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestConsoleSMSProvider_Send(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsoleSMSProvider()
	p.out = &buf

	n := emailNotification(`{"to":"+15551234567","body":"your code is 1234"}`)
	n.MessageType = domain.MessageTypeSMS

	out, err := p.Send(context.Background(), n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}

	printed := buf.String()
	if !strings.Contains(printed, "SMS NOTIFICATION") {
		t.Fatal("banner header missing")
	}
	if !strings.Contains(printed, "+15551234567") || !strings.Contains(printed, "your code is 1234") {
		t.Fatalf("recipient or body missing from output:\n%s", printed)
	}
}

func TestConsoleSMSProvider_MissingFieldsNotRetryable(t *testing.T) {
	p := NewConsoleSMSProvider()
	p.out = &bytes.Buffer{}

	for _, payload := range []string{
		`{"body":"no recipient"}`,
		`{"to":"+15551234567"}`,
		`not json at all`,
	} {
		out, err := p.Send(context.Background(), emailNotification(payload))
		if err != nil {
			t.Fatalf("payload %q: unexpected transport error: %v", payload, err)
		}
		if out.Success {
			t.Fatalf("payload %q: expected failure", payload)
		}
		if out.Retryable {
			t.Fatalf("payload %q: caller mistakes must not be retryable", payload)
		}
	}
}

func TestLocalProvider_AlwaysSucceeds(t *testing.T) {
	var buf bytes.Buffer
	p := NewLocalProvider()
	p.out = &buf

	out, err := p.Send(context.Background(), emailNotification(`{"to":"a@b.com","body":"hello"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	if !strings.Contains(buf.String(), "LOCAL NOTIFICATION - EMAIL") {
		t.Fatalf("banner missing:\n%s", buf.String())
	}
}

func TestLocalProvider_TruncatesLongBody(t *testing.T) {
	var buf bytes.Buffer
	p := NewLocalProvider()
	p.out = &buf

	long := strings.Repeat("x", 250)
	_, err := p.Send(context.Background(), emailNotification(`{"body":"`+long+`"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), long) {
		t.Fatal("body longer than 100 chars must be truncated")
	}
	if !strings.Contains(buf.String(), "...") {
		t.Fatal("truncation ellipsis missing")
	}
}

func TestTextbeltProvider_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"textId":"12345"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewTextbeltProvider("test-key", time.Second)
	p.apiURL = srv.URL

	n := emailNotification(`{"to":"+15551234567","body":"hi"}`)
	out, err := p.Send(context.Background(), n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
}

func TestTextbeltProvider_APIRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"error":"Out of quota"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewTextbeltProvider("test-key", time.Second)
	p.apiURL = srv.URL

	out, err := p.Send(context.Background(), emailNotification(`{"to":"+15551234567","body":"hi"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Success {
		t.Fatal("expected failure")
	}
	if !out.Retryable {
		t.Fatal("quota errors are transient and must stay retryable")
	}
	if !strings.Contains(out.Message, "Out of quota") {
		t.Fatalf("provider error missing from message: %q", out.Message)
	}
}

func TestFCMProvider_TokenAndTopicTargets(t *testing.T) {
	var gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body) //nolint:errcheck
		gotBody = buf.Bytes()
		w.Write([]byte(`{"success":1,"failure":0}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewFCMProvider("server-key", time.Second)
	p.apiURL = srv.URL

	n := emailNotification(`{"token":"device-token","title":"Hi","body":"there"}`)
	n.MessageType = domain.MessageTypePush
	out, err := p.Send(context.Background(), n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	if gotAuth != "key=server-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if !strings.Contains(string(gotBody), `"to":"device-token"`) {
		t.Fatalf("token target missing: %s", gotBody)
	}

	n = emailNotification(`{"topic":"news","body":"breaking"}`)
	n.MessageType = domain.MessageTypePush
	if _, err := p.Send(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(gotBody), `"to":"/topics/news"`) {
		t.Fatalf("topic target missing: %s", gotBody)
	}
}

func TestFCMProvider_MissingTarget(t *testing.T) {
	p := NewFCMProvider("server-key", time.Second)

	n := emailNotification(`{"body":"no target"}`)
	out, err := p.Send(context.Background(), n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Success || out.Retryable {
		t.Fatalf("missing target must fail non-retryable: %+v", out)
	}
}

func TestBuildMIMEMessage(t *testing.T) {
	msg := string(buildMIMEMessage("from@x.com", "to@y.com", "Greetings", "<b>hello</b>"))

	for _, want := range []string{
		"From: from@x.com\r\n",
		"To: to@y.com\r\n",
		"Subject: Greetings\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: multipart/alternative",
		"Content-Type: text/html; charset=UTF-8",
		"<b>hello</b>",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("MIME message missing %q:\n%s", want, msg)
		}
	}
}

func TestSMTPProvider_MissingFieldsNotRetryable(t *testing.T) {
	p := NewSMTPProvider("localhost", 587, "u", "p", "from@x.com", true, time.Second)

	out, err := p.Send(context.Background(), emailNotification(`{"body":"no recipient"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Success || out.Retryable {
		t.Fatalf("missing recipient must fail non-retryable: %+v", out)
	}
}

func TestRegistry_LookupAndFallbacks(t *testing.T) {
	fake := NewLocalProvider()
	r := NewRegistryWith(map[domain.ProviderType]Provider{
		domain.ProviderLocal: fake,
	})

	got, ok := r.Lookup(domain.ProviderLocal)
	if !ok || got != fake {
		t.Fatal("expected registered adapter back")
	}
	if _, ok := r.Lookup(domain.ProviderFCM); ok {
		t.Fatal("unregistered provider must miss")
	}
}
