package handshake

import (
	"strings"

	"github.com/danhigham/autoresponder/internal/domain"
)

// Line-protocol tokens exchanged with the handshake child. The child
// prints the stdout tokens on their own lines and prefixes error-stream
// diagnostics with ErrorPrefix.
const (
	TokenWaitingForCode = "WAITING_FOR_CODE"
	Token2FANeeded      = "2FA_NEEDED"
	TokenAuthSuccess    = "AUTH_SUCCESS"
	ErrorPrefix         = "AUTH_ERROR:"
)

type rule struct {
	substr  string
	outcome domain.Outcome
}

// Classification tables for the free-text Telegram RPC errors relayed by
// the child. The matched substrings double as test fixtures.
var sendCodeRules = []rule{
	{"FLOOD", domain.Outcome{Message: "Too many attempts. Please wait before trying again."}},
	{"PHONE_NUMBER_INVALID", domain.Outcome{Message: "Invalid phone number. Check the format."}},
	{"PHONE_CODE_EXPIRED", domain.Outcome{Message: "Code expired. Request a new code."}},
}

var authRules = []rule{
	{"PASSWORD_HASH_INVALID", domain.Outcome{Message: "Invalid 2FA password", Needs2FA: true}},
	{"PHONE_CODE_INVALID", domain.Outcome{Message: "Invalid code. Check and try again."}},
}

// errorText extracts the message following the AUTH_ERROR: marker.
func errorText(line string) (string, bool) {
	_, rest, ok := strings.Cut(line, ErrorPrefix)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// classify maps child error text onto a user-facing outcome. Unmatched
// text is surfaced verbatim; it has already been sanitized to the RPC
// error name by the child.
func classify(rules []rule, text string) domain.Outcome {
	for _, r := range rules {
		if strings.Contains(text, r.substr) {
			return r.outcome
		}
	}
	return domain.Outcome{Message: text}
}
