package prompt

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// ErrAborted is returned when the operator interrupts a question.
var ErrAborted = errors.New("aborted by operator")

// Terminal asks questions on the controlling terminal.
type Terminal struct {
	rl *readline.Instance
}

func NewTerminal() (*Terminal, error) {
	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing readline: %w", err)
	}

	return &Terminal{rl: rl}, nil
}

func (t *Terminal) Close() error {
	return t.rl.Close()
}

// Ask shows prompt and returns the trimmed answer.
func (t *Terminal) Ask(prompt string) (string, error) {
	t.rl.SetPrompt(prompt)

	line, err := t.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// Secret asks for a value without echoing it.
func (t *Terminal) Secret(prompt string) (string, error) {
	b, err := t.rl.ReadPassword(prompt)
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimSpace(string(b)), nil
}

func (t *Terminal) Out() io.Writer {
	return t.rl.Stdout()
}

// Input is an interactive source of answers.
type Input interface {
	Ask(prompt string) (string, error)
	Out() io.Writer
}

// YesNo parses a confirmation, in English or Portuguese.
func YesNo(answer string) (yes bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "s", "sim", "y", "yes":
		return true, true
	case "n", "não", "nao", "no":
		return false, true
	}
	return false, false
}
