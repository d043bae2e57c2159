// Package prompt asks the operator for locators, form values and choices.
// Terminal prompts run small bubbletea programs; None answers nothing and is
// used on CI and when stdin is not a terminal.
package prompt

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"sitepilot/internal/browser"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// ErrCancelled is returned when the operator dismisses a prompt.
var ErrCancelled = errors.New("prompt cancelled")

// ErrNotInteractive is returned by prompts that need an operator.
var ErrNotInteractive = errors.New("not running interactively")

// Prompter is what the CLI needs beyond the model's locator and value
// prompts.
type Prompter interface {
	Interactive() bool
	Locator(ctx context.Context, action string) (browser.Mode, string, error)
	Value(ctx context.Context, name string) (string, error)
	Choose(ctx context.Context, title string, options []string) (string, error)
	Text(ctx context.Context, label, initial string) (string, error)
}

// Interactive reports whether stdin is a terminal and CI is not set.
func Interactive() bool {
	if ci, _ := strconv.ParseBool(os.Getenv("CI")); ci {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// New returns a Terminal prompter when interactive is true, None otherwise.
func New(interactive bool, logger *zap.Logger) Prompter {
	if !interactive {
		return None{}
	}
	return NewTerminal(os.Stdin, os.Stdout, logger)
}

// None never asks.
type None struct{}

func (None) Interactive() bool { return false }

func (None) Locator(context.Context, string) (browser.Mode, string, error) {
	return browser.ModeNone, "", nil
}

func (None) Value(context.Context, string) (string, error) { return "", nil }

func (None) Choose(context.Context, string, []string) (string, error) {
	return "", ErrNotInteractive
}

func (None) Text(_ context.Context, _ string, initial string) (string, error) {
	return initial, nil
}

// Terminal prompts on a terminal.
type Terminal struct {
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
}

// NewTerminal prompts on in and out.
func NewTerminal(in io.Reader, out io.Writer, logger *zap.Logger) *Terminal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Terminal{in: in, out: out, logger: logger}
}

func (t *Terminal) Interactive() bool { return true }

// Locator asks for a mode and a value to try for action. Cancelling either
// prompt returns ModeNone.
func (t *Terminal) Locator(ctx context.Context, action string) (browser.Mode, string, error) {
	var names []string
	for _, m := range browser.Modes() {
		names = append(names, string(m))
	}
	choice, err := t.Choose(ctx, "Locator mode for "+action, names)
	if errors.Is(err, ErrCancelled) {
		return browser.ModeNone, "", nil
	}
	if err != nil {
		return browser.ModeNone, "", err
	}
	mode, err := browser.ParseMode(choice)
	if err != nil {
		return browser.ModeNone, "", err
	}

	value, err := t.Text(ctx, "Locator value ("+string(mode)+")", "")
	if err != nil && !errors.Is(err, ErrCancelled) {
		return browser.ModeNone, "", err
	}
	if err != nil || strings.TrimSpace(value) == "" {
		return browser.ModeNone, "", nil
	}
	t.logger.Debug("Locator entered", zap.String("action", action), zap.String("mode", string(mode)))
	return mode, strings.TrimSpace(value), nil
}

// Value asks for a form value. Names that look secret are not echoed.
func (t *Terminal) Value(ctx context.Context, name string) (string, error) {
	m := newInputModel(strings.ReplaceAll(name, "_", " "), "", Secret(name))
	final, err := t.run(ctx, m)
	if err != nil {
		return "", err
	}
	in := final.(inputModel)
	if in.cancelled {
		return "", nil
	}
	return in.input.Value(), nil
}

// Choose shows options as a list and returns the one picked.
func (t *Terminal) Choose(ctx context.Context, title string, options []string) (string, error) {
	if len(options) == 0 {
		return "", errors.New("nothing to choose from")
	}
	final, err := t.run(ctx, newChoiceModel(title, options))
	if err != nil {
		return "", err
	}
	c := final.(choiceModel)
	if c.cancelled {
		return "", ErrCancelled
	}
	return c.chosen, nil
}

// Text asks for a line of text, starting from initial.
func (t *Terminal) Text(ctx context.Context, label, initial string) (string, error) {
	final, err := t.run(ctx, newInputModel(label, initial, false))
	if err != nil {
		return "", err
	}
	in := final.(inputModel)
	if in.cancelled {
		return "", ErrCancelled
	}
	return in.input.Value(), nil
}

func (t *Terminal) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(t.in), tea.WithOutput(t.out))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final, nil
}

// Secret reports whether a field name holds something that should not be
// echoed or logged.
func Secret(name string) bool {
	name = strings.ToLower(name)
	for _, word := range []string{"password", "passwd", "secret", "token", "pin"} {
		if strings.Contains(name, word) {
			return true
		}
	}
	return false
}
