package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// TerminalAuth answers the login flow by asking the operator.
type TerminalAuth struct {
	In Prompter

	// PhoneNumber skips the phone question when set
	PhoneNumber string
}

var _ auth.UserAuthenticator = TerminalAuth{}

var errSignUp = errors.New("signing up is not supported, register the account in an official app first")

func (a TerminalAuth) Phone(_ context.Context) (string, error) {
	if a.PhoneNumber != "" {
		return a.PhoneNumber, nil
	}

	phone, err := a.In.Ask("Phone number (international format): ")
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(strings.TrimSpace(phone), " ", ""), nil
}

func (a TerminalAuth) Password(_ context.Context) (string, error) {
	return a.In.Secret("Two-step verification password: ")
}

func (a TerminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	code, err := a.In.Ask("Login code: ")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(code), nil
}

func (a TerminalAuth) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return errSignUp
}

func (a TerminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errSignUp
}

type Prompter interface {
	Ask(prompt string) (string, error)
	Secret(prompt string) (string, error)
}
