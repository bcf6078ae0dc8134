package typist

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Clipboard applies operations to an in-memory shadow of the session
// text, pushes the result to the system clipboard, and emits a paste
// chord. It suits surfaces that reject synthetic keystrokes but accept
// paste, at the cost of replacing the selection rather than editing at
// the caret.
//
// The shadow is maintained in runes so deletions never split a
// character.
type Clipboard struct {
	shadow []rune
	run    runner

	// copyText writes text to the system clipboard. Tests stub it.
	copyText func(text string) error

	// pasteChord is the key combination that pastes, sent via xdotool.
	pasteChord string
	xdotool    string
}

// NewClipboard creates a clipboard sink with platform defaults.
func NewClipboard() *Clipboard {
	c := &Clipboard{
		run:     execRun,
		xdotool: "xdotool",
	}
	switch runtime.GOOS {
	case "darwin":
		c.copyText = copyWith([][]string{{"pbcopy"}})
		c.pasteChord = "cmd+v"
	default:
		// X11 first, then Wayland.
		c.copyText = copyWith([][]string{
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
			{"wl-copy"},
		})
		c.pasteChord = "ctrl+v"
	}
	return c
}

// Delete trims n runes from the shadow text.
func (c *Clipboard) Delete(n int) error {
	if n < 0 {
		return fmt.Errorf("negative delete count %d", n)
	}
	if n > len(c.shadow) {
		n = len(c.shadow)
	}
	c.shadow = c.shadow[:len(c.shadow)-n]
	return nil
}

// Insert appends text to the shadow.
func (c *Clipboard) Insert(text string) error {
	c.shadow = append(c.shadow, []rune(text)...)
	return nil
}

// SetText replaces the shadow with text. The session seeds it with the
// baseline so the first paste carries the full document.
func (c *Clipboard) SetText(text string) {
	c.shadow = []rune(text)
}

// Text returns the current shadow text.
func (c *Clipboard) Text() string {
	return string(c.shadow)
}

// Paste copies the shadow text to the clipboard and emits the paste
// chord. The session invokes it after each batch of applied operations
// and at end of stream.
func (c *Clipboard) Paste() error {
	if err := c.copyText(string(c.shadow)); err != nil {
		return err
	}
	return c.run(c.xdotool, "key", c.pasteChord)
}

// copyWith returns a clipboard writer that tries each candidate
// utility in order and uses the first that succeeds.
func copyWith(cmds [][]string) func(string) error {
	return func(text string) error {
		var lastErr error
		for _, cmd := range cmds {
			w := exec.Command(cmd[0], cmd[1:]...)
			w.Stdin = strings.NewReader(text)
			out, err := w.CombinedOutput()
			if err == nil {
				return nil
			}
			lastErr = fmt.Errorf("%s: %w: %s", cmd[0], err, strings.TrimSpace(string(out)))
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no clipboard utility configured")
		}
		return lastErr
	}
}
