package handshake

import (
	"testing"

	"github.com/danhigham/autoresponder/internal/domain"
)

func TestErrorText(t *testing.T) {
	text, ok := errorText("AUTH_ERROR: FLOOD_WAIT_42 (caused by auth.SendCode)")
	if !ok {
		t.Fatal("marker not recognized")
	}
	if text != "FLOOD_WAIT_42 (caused by auth.SendCode)" {
		t.Errorf("text = %q", text)
	}

	if _, ok := errorText("connecting to DC 2"); ok {
		t.Error("plain diagnostics must not classify as errors")
	}
}

func TestClassify_SendCodeFixtures(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.Outcome
	}{
		{"flood", "FLOOD_WAIT_123", domain.Outcome{Message: "Too many attempts. Please wait before trying again."}},
		{"invalid phone", "PHONE_NUMBER_INVALID", domain.Outcome{Message: "Invalid phone number. Check the format."}},
		{"expired code", "PHONE_CODE_EXPIRED", domain.Outcome{Message: "Code expired. Request a new code."}},
		{"unknown", "API_ID_INVALID", domain.Outcome{Message: "API_ID_INVALID"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(sendCodeRules, tt.text); got != tt.want {
				t.Errorf("classify(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassify_AuthFixtures(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.Outcome
	}{
		{"bad 2fa", "PASSWORD_HASH_INVALID", domain.Outcome{Message: "Invalid 2FA password", Needs2FA: true}},
		{"invalid code", "PHONE_CODE_INVALID", domain.Outcome{Message: "Invalid code. Check and try again."}},
		{"unknown", "SESSION_PASSWORD_NEEDED", domain.Outcome{Message: "SESSION_PASSWORD_NEEDED"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(authRules, tt.text); got != tt.want {
				t.Errorf("classify(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}
