package email

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingSender struct {
	mu      sync.Mutex
	subject string
	to      string
	body    string
	calls   int
	err     error
	delay   time.Duration
}

func (r *recordingSender) Send(ctx context.Context, subject, toEmail, htmlBody string) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subject = subject
	r.to = toEmail
	r.body = htmlBody
	r.calls++
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return r.err
}

func TestAsyncSender_ReturnsBeforeDelivery(t *testing.T) {
	next := &recordingSender{delay: 50 * time.Millisecond}
	async := NewAsyncSender(zap.NewNop(), next, time.Second)

	start := time.Now()
	if err := async.Send(context.Background(), "Verify Email", "hello@gmail.com", "<p>hi</p>"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if time.Since(start) >= 50*time.Millisecond {
		t.Fatalf("expected send to return before delivery")
	}

	async.Wait()
	if next.calls != 1 || next.to != "hello@gmail.com" || next.subject != "Verify Email" {
		t.Fatalf("unexpected delivery: %+v", next)
	}
}

func TestAsyncSender_SwallowsFailures(t *testing.T) {
	next := &recordingSender{err: errors.New("smtp down")}
	async := NewAsyncSender(zap.NewNop(), next, time.Second)

	if err := async.Send(context.Background(), "Verify Email", "hello@gmail.com", "<p>hi</p>"); err != nil {
		t.Fatalf("expected failures to stay in the background, got %v", err)
	}
	async.Wait()
	if next.calls != 1 {
		t.Fatalf("expected one attempt, got %d", next.calls)
	}
}

func TestAsyncSender_OutlivesRequestContext(t *testing.T) {
	next := &recordingSender{delay: 20 * time.Millisecond}
	async := NewAsyncSender(zap.NewNop(), next, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	_ = async.Send(ctx, "Verify Email", "hello@gmail.com", "<p>hi</p>")
	cancel()
	async.Wait()

	if next.calls != 1 {
		t.Fatalf("expected delivery attempt after request cancellation")
	}
}

func TestDisabledSender(t *testing.T) {
	err := NewDisabledSender("email sender not configured").Send(context.Background(), "s", "a@b.co", "")
	if err == nil || err.Error() != "email sender not configured" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRenderVerification(t *testing.T) {
	body, err := RenderVerification(VerificationData{
		FullName:         "Jonh Doe",
		Email:            "hello@gmail.com",
		Code:             "123456",
		VerificationLink: "http://127.0.0.1:8000/api/v1/auth/verify/123456",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Hi, Jonh Doe", "<b>hello@gmail.com</b>", `href="http://127.0.0.1:8000/api/v1/auth/verify/123456"`, "<b>123456</b>"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body:\n%s", want, body)
		}
	}
}

func TestRenderVerification_EscapesNames(t *testing.T) {
	body, err := RenderVerification(VerificationData{FullName: "<script>x</script>"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Fatalf("expected name to be escaped: %s", body)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("noreply@example.com", "Users API", "hello@gmail.com", "Verify Email", "<p>hi</p>")
	if !strings.Contains(msg, "From: Users API <noreply@example.com>\r\n") {
		t.Fatalf("unexpected from header: %q", msg)
	}
	if !strings.Contains(msg, "Content-Type: text/html") {
		t.Fatalf("expected html content type: %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\n<p>hi</p>") {
		t.Fatalf("expected body after blank line: %q", msg)
	}
}
