package telegram

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestStreamAuth_PromptsAndReadsSecrets(t *testing.T) {
	in := strings.NewReader("12345\nhunter2\n")
	var out bytes.Buffer

	a := NewStreamAuth("+15550100", in, &out)
	a.CodeToken = "WAITING_FOR_CODE"
	a.PasswordToken = "2FA_NEEDED"

	phone, err := a.Phone(context.Background())
	if err != nil {
		t.Fatalf("Phone() error: %v", err)
	}
	if phone != "+15550100" {
		t.Errorf("Phone() = %q", phone)
	}

	code, err := a.Code(context.Background(), nil)
	if err != nil {
		t.Fatalf("Code() error: %v", err)
	}
	if code != "12345" {
		t.Errorf("Code() = %q, want 12345", code)
	}
	if !strings.Contains(out.String(), "WAITING_FOR_CODE") {
		t.Errorf("output = %q, missing code token", out.String())
	}

	pw, err := a.Password(context.Background())
	if err != nil {
		t.Fatalf("Password() error: %v", err)
	}
	if pw != "hunter2" {
		t.Errorf("Password() = %q, want hunter2", pw)
	}
	if !strings.Contains(out.String(), "2FA_NEEDED") {
		t.Errorf("output = %q, missing password token", out.String())
	}
}

func TestStreamAuth_NoPhone(t *testing.T) {
	a := NewStreamAuth("", strings.NewReader(""), &bytes.Buffer{})
	if _, err := a.Phone(context.Background()); err == nil {
		t.Error("expected error for missing phone number")
	}
}

func TestStreamAuth_ContextCancelled(t *testing.T) {
	// An input stream that never produces a line.
	blocked, _ := io.Pipe()
	a := NewStreamAuth("+15550100", blocked, &bytes.Buffer{})
	a.CodeToken = "WAITING_FOR_CODE"

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := a.Code(ctx, nil); err == nil {
		t.Error("expected context error while waiting for input")
	}
}

func TestStreamAuth_InputClosed(t *testing.T) {
	a := NewStreamAuth("+15550100", strings.NewReader(""), &bytes.Buffer{})
	a.CodeToken = "WAITING_FOR_CODE"

	if _, err := a.Code(context.Background(), nil); err == nil {
		t.Error("expected error when input stream is exhausted")
	}
}
