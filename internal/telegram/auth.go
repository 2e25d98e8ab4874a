package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// StreamAuth implements gotd's auth.UserAuthenticator over the handshake
// line protocol: the phone number is fixed up front, prompts for the code
// and the 2FA password are announced as tokens on the output stream, and
// the secrets themselves arrive as lines on the input stream.
type StreamAuth struct {
	phone string
	out   io.Writer
	lines chan string

	// Tokens printed before blocking on input.
	CodeToken     string
	PasswordToken string
}

func NewStreamAuth(phone string, in io.Reader, out io.Writer) *StreamAuth {
	a := &StreamAuth{
		phone: phone,
		out:   out,
		lines: make(chan string),
	}
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			a.lines <- sc.Text()
		}
		close(a.lines)
	}()
	return a
}

func (a *StreamAuth) Phone(ctx context.Context) (string, error) {
	if a.phone == "" {
		return "", errors.New("no phone number supplied")
	}
	return a.phone, nil
}

func (a *StreamAuth) Code(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
	return a.prompt(ctx, a.CodeToken)
}

func (a *StreamAuth) Password(ctx context.Context) (string, error) {
	return a.prompt(ctx, a.PasswordToken)
}

func (a *StreamAuth) prompt(ctx context.Context, token string) (string, error) {
	fmt.Fprintln(a.out, token)
	select {
	case line, ok := <-a.lines:
		if !ok {
			return "", errors.New("input stream closed")
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *StreamAuth) AcceptTermsOfService(ctx context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a *StreamAuth) SignUp(ctx context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up not supported")
}
