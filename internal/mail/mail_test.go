package mail

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"intelbrief/backend/internal/config"
)

func TestValidateRecipient(t *testing.T) {
	cases := []struct {
		address string
		wantErr error
	}{
		{"name@example.com", nil},
		{"  name@example.com  ", nil},
		{"first.last+tag@sub.example.co", nil},
		{"", ErrInvalidAddress},
		{"not-an-email", ErrInvalidAddress},
		{"name@", ErrInvalidAddress},
		{"name@example", ErrInvalidAddress},
		{"tester@mailinator.com", ErrDisposableAddress},
		{"tester@YOPMAIL.com", ErrDisposableAddress},
	}
	for _, tc := range cases {
		got, err := ValidateRecipient(tc.address)
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("ValidateRecipient(%q) error = %v, want %v", tc.address, err, tc.wantErr)
		}
		if err == nil && got != strings.TrimSpace(tc.address) {
			t.Fatalf("ValidateRecipient(%q) = %q, want trimmed input", tc.address, got)
		}
	}
}

func TestRenderHTMLSanitizesMarkdown(t *testing.T) {
	markdown := "# Intelligence Brief: Acme Corp\n\n- Cuts confirmed <script>alert(1)</script>\n\n## Sources\n- [Reuters](https://www.reuters.com/acme)\n"

	html, err := RenderHTML("Acme Corp", markdown)
	if err != nil {
		t.Fatalf("RenderHTML returned error: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("script tag survived sanitization:\n%s", html)
	}
	if !strings.Contains(html, `href="https://www.reuters.com/acme"`) {
		t.Fatalf("source link missing from rendered email:\n%s", html)
	}
	if !strings.Contains(html, "<strong>Topic:</strong> Acme Corp") {
		t.Fatalf("topic line missing from rendered email:\n%s", html)
	}
}

func TestRenderHTMLEscapesTopic(t *testing.T) {
	html, err := RenderHTML("<b>Acme</b>", "body")
	if err != nil {
		t.Fatalf("RenderHTML returned error: %v", err)
	}
	if strings.Contains(html, "<b>Acme</b>") {
		t.Fatalf("topic was not escaped:\n%s", html)
	}
}

func TestSendPostsToSendGrid(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewSender(config.Config{SendGridAPIKey: "sg-key", SenderEmail: "briefs@example.com"})
	sender.host = server.URL

	detail, err := sender.Send(context.Background(), "Brief: Acme Corp", "<p>hi</p>", "reader@example.com")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if detail != "status=202" {
		t.Fatalf("unexpected detail %q", detail)
	}
	if gotAuth != "Bearer sg-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotPath != "/v3/mail/send" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	payload := string(gotBody)
	if !strings.Contains(payload, "reader@example.com") || !strings.Contains(payload, "briefs@example.com") {
		t.Fatalf("addresses missing from payload: %s", payload)
	}
}

func TestSendRequiresAPIKey(t *testing.T) {
	sender := NewSender(config.Config{})
	if sender.Enabled() {
		t.Fatalf("sender without key should report disabled")
	}
	_, err := sender.Send(context.Background(), "s", "b", "reader@example.com")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSendSurfacesUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sender := NewSender(config.Config{SendGridAPIKey: "bad", SenderEmail: "briefs@example.com"})
	sender.host = server.URL

	_, err := sender.Send(context.Background(), "s", "b", "reader@example.com")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected upstream status in error, got %v", err)
	}
}

func TestSubjectTruncatesTopic(t *testing.T) {
	long := strings.Repeat("a", 80)
	subject := Subject(long)
	if subject != "Brief: "+strings.Repeat("a", 60) {
		t.Fatalf("unexpected subject %q", subject)
	}
}
