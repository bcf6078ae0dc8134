// Package typist implements output sinks that apply reconciliation
// operations to a real text surface.
//
// Two injection methods are provided, mirroring the surfaces a
// dictation overlay can drive:
//   - Xdotool sends backspaces and types text through the xdotool
//     command, editing in place at the system caret.
//   - Clipboard maintains a shadow copy of the session text, copies it
//     to the system clipboard, and emits a paste chord.
//
// Sinks apply operations strictly in call order and never split a
// UTF-8 sequence: deletion counts are logical characters, and one
// backspace keystroke removes one logical character.
package typist

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// runner executes an external command. Tests stub it out.
type runner func(name string, args ...string) error

func execRun(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// XdotoolConfig configures the xdotool sink.
type XdotoolConfig struct {
	// Command is the xdotool executable path.
	Command string

	// DelayMs is the millisecond delay between injected keystrokes.
	DelayMs int
}

// DefaultXdotoolConfig returns the conventional xdotool settings.
func DefaultXdotoolConfig() XdotoolConfig {
	return XdotoolConfig{
		Command: "xdotool",
		DelayMs: 5,
	}
}

// Xdotool injects operations as synthetic keystrokes via xdotool.
// Only useful on X11; construction does not probe for the binary, so
// the first operation surfaces a missing installation.
type Xdotool struct {
	cfg XdotoolConfig
	run runner
}

// NewXdotool creates an xdotool sink.
func NewXdotool(cfg XdotoolConfig) *Xdotool {
	if cfg.Command == "" {
		cfg.Command = "xdotool"
	}
	return &Xdotool{cfg: cfg, run: execRun}
}

// Delete sends n backspace keystrokes.
func (x *Xdotool) Delete(n int) error {
	if n < 0 {
		return fmt.Errorf("negative delete count %d", n)
	}
	if n == 0 {
		return nil
	}
	return x.run(x.cfg.Command,
		"key",
		"--delay", strconv.Itoa(x.cfg.DelayMs),
		"--repeat", strconv.Itoa(n),
		"BackSpace",
	)
}

// Insert types text at the caret. Newlines are injected as Return
// keystrokes; xdotool type does not translate them reliably.
func (x *Xdotool) Insert(text string) error {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			err := x.run(x.cfg.Command,
				"type",
				"--delay", strconv.Itoa(x.cfg.DelayMs),
				"--",
				line,
			)
			if err != nil {
				return err
			}
		}
		if i < len(lines)-1 {
			if err := x.run(x.cfg.Command, "key", "Return"); err != nil {
				return err
			}
		}
	}
	return nil
}
