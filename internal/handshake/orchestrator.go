// Package handshake drives the interactive credential-exchange flow
// against Telegram: phone number, then one-time code, then an optional
// second factor. The flow runs in a dedicated child process speaking a
// line protocol; the orchestrator turns its stream events into structured
// outcomes for the HTTP caller.
package handshake

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danhigham/autoresponder/internal/config"
	"github.com/danhigham/autoresponder/internal/domain"
	"github.com/danhigham/autoresponder/internal/process"
)

const (
	defaultSendCodeTimeout = 30 * time.Second
	defaultAuthTimeout     = 60 * time.Second
)

// SendCodeRequest is step one: request a one-time code for a phone number.
type SendCodeRequest struct {
	APIID       string
	APIHash     string
	PhoneNumber string
}

// AuthRequest is step two: complete authentication with the received code
// and, for accounts that require it, the second-factor password.
type AuthRequest struct {
	PhoneCode string
	Password  string
}

// Orchestrator owns at most one live handshake child at a time. SendCode
// spawns it and waits for the code prompt; Authenticate feeds it the
// secrets. Every terminal path kills the child and clears the slot.
type Orchestrator struct {
	spawner process.Spawner
	records *config.RecordStore
	logger  *zap.Logger

	SendCodeTimeout time.Duration
	AuthTimeout     time.Duration

	mu       sync.Mutex
	inFlight bool
	child    process.Child
}

func NewOrchestrator(spawner process.Spawner, records *config.RecordStore, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		spawner:         spawner,
		records:         records,
		logger:          logger,
		SendCodeTimeout: defaultSendCodeTimeout,
		AuthTimeout:     defaultAuthTimeout,
	}
}

// InFlight reports whether a handshake is currently in progress.
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// SendCode persists the API credentials, spawns the handshake child and
// waits for it to request the code. On success the child stays alive for
// the Authenticate step.
func (o *Orchestrator) SendCode(ctx context.Context, req SendCodeRequest) domain.Outcome {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return domain.Outcome{Message: "A code was already sent. Complete authentication first."}
	}
	o.inFlight = true
	o.mu.Unlock()

	out := o.sendCode(ctx, req)
	if !out.Success {
		o.clear()
	}
	return out
}

func (o *Orchestrator) sendCode(ctx context.Context, req SendCodeRequest) domain.Outcome {
	// Preserve any existing session token.
	if err := o.records.SetCredentials(req.APIID, req.APIHash); err != nil {
		o.logger.Error("persisting credentials failed", zap.Error(err))
		return domain.Outcome{Message: "Error sending code to Telegram: " + err.Error()}
	}

	child, err := o.spawner.Spawn(map[string]string{
		"T_API_ID":     req.APIID,
		"T_API_HASH":   req.APIHash,
		"PHONE_NUMBER": req.PhoneNumber,
		"RECORD_PATH":  o.records.Path(),
	})
	if err != nil {
		o.logger.Error("spawning handshake child failed", zap.Error(err))
		return domain.Outcome{Message: "Error sending code to Telegram: " + err.Error()}
	}

	timeout := time.NewTimer(o.SendCodeTimeout)
	defer timeout.Stop()

	stdout, stderr := child.Stdout(), child.Stderr()
	done := child.Done()
	// After exit, give the stream pumps a moment to deliver buffered lines
	// before treating the exit itself as the outcome.
	var exitGrace <-chan time.Time

	for {
		if stdout == nil && stderr == nil && done == nil {
			return domain.Outcome{Message: "Failed to send code to Telegram"}
		}
		select {
		case line, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			o.logger.Info("send-code stdout", zap.String("line", line))
			switch {
			case strings.Contains(line, TokenWaitingForCode):
				o.mu.Lock()
				o.child = child
				o.mu.Unlock()
				return domain.Outcome{Success: true, Message: "Code sent to Telegram! Check your messages."}
			case strings.Contains(line, TokenAuthSuccess):
				// The stored session was still valid; no code needed.
				child.Kill()
				o.clear()
				return domain.Outcome{Success: true, Message: "Already authenticated. Session saved."}
			}

		case line, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			o.logger.Info("send-code stderr", zap.String("line", line))
			if text, ok := errorText(line); ok {
				child.Kill()
				return classify(sendCodeRules, text)
			}

		case <-done:
			done = nil
			exitGrace = time.After(200 * time.Millisecond)

		case <-exitGrace:
			return domain.Outcome{Message: "Failed to send code to Telegram"}

		case <-timeout.C:
			child.Kill()
			return domain.Outcome{Message: "Timeout sending code to Telegram"}

		case <-ctx.Done():
			child.Kill()
			return domain.Outcome{Message: "Timeout sending code to Telegram"}
		}
	}
}

// Authenticate finishes the flow started by SendCode by writing the code
// (and, if required and supplied, the password) to the live child. Any
// terminal outcome ends the handshake; a declined or failed second factor
// requires restarting from SendCode.
func (o *Orchestrator) Authenticate(ctx context.Context, req AuthRequest) domain.Outcome {
	o.mu.Lock()
	child := o.child
	o.mu.Unlock()

	if child == nil {
		return domain.Outcome{Message: "You must send the code first"}
	}
	defer o.clear()

	if err := child.WriteLine(req.PhoneCode); err != nil {
		child.Kill()
		return domain.Outcome{Message: "Authentication error: " + err.Error()}
	}

	// One budget for the whole step; not reset across the 2FA sub-wait.
	timeout := time.NewTimer(o.AuthTimeout)
	defer timeout.Stop()

	stdout, stderr := child.Stdout(), child.Stderr()
	done := child.Done()
	var exitGrace <-chan time.Time
	passwordSent := false

	for {
		if stdout == nil && stderr == nil && done == nil {
			return domain.Outcome{Message: "Authentication failed"}
		}
		select {
		case line, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			o.logger.Info("auth stdout", zap.String("line", line))
			switch {
			case strings.Contains(line, Token2FANeeded):
				if req.Password != "" && !passwordSent {
					passwordSent = true
					if err := child.WriteLine(req.Password); err != nil {
						child.Kill()
						return domain.Outcome{Message: "Authentication error: " + err.Error()}
					}
					continue
				}
				child.Kill()
				return domain.Outcome{Needs2FA: true, Message: "2FA password required"}
			case strings.Contains(line, TokenAuthSuccess):
				// The child has already persisted the session token.
				child.Kill()
				return domain.Outcome{Success: true, Message: "Authentication successful! Session saved."}
			}

		case line, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			o.logger.Info("auth stderr", zap.String("line", line))
			if text, ok := errorText(line); ok {
				child.Kill()
				return classify(authRules, text)
			}

		case <-done:
			done = nil
			exitGrace = time.After(200 * time.Millisecond)

		case <-exitGrace:
			return domain.Outcome{Message: "Authentication failed"}

		case <-timeout.C:
			child.Kill()
			return domain.Outcome{Message: "Authentication timed out"}

		case <-ctx.Done():
			child.Kill()
			return domain.Outcome{Message: "Authentication timed out"}
		}
	}
}

// clear resets the session slot so a new handshake can start.
func (o *Orchestrator) clear() {
	o.mu.Lock()
	o.inFlight = false
	o.child = nil
	o.mu.Unlock()
}
