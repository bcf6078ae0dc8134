// Package modes manages correction-mode instruction files.
//
// A mode is a plain-text file <name>.txt in the modes directory; its
// content is the instruction text handed to the remote transcription
// process when a stream starts. The active mode can be cycled at
// runtime, and the directory can be watched so edits take effect
// without a restart.
package modes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrNoModes reports a modes directory with no mode files.
var ErrNoModes = errors.New("no mode files found")

// DefaultMode is selected on load when present.
const DefaultMode = "default"

// Library holds the loaded modes and the active selection.
type Library struct {
	dir string

	mu      sync.RWMutex
	modes   map[string]string
	names   []string
	active  string
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewLibrary creates a library over dir without loading it.
func NewLibrary(dir string) *Library {
	return &Library{
		dir:   dir,
		modes: make(map[string]string),
	}
}

// Load reads every *.txt file in the directory. The active mode is
// preserved across reloads when it still exists, otherwise it falls
// back to "default" or the first mode by name.
func (l *Library) Load() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("read modes dir: %w", err)
	}

	modes := make(map[string]string)
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".txt")
		data, err := os.ReadFile(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read mode %s: %w", name, err)
		}
		modes[name] = strings.TrimSpace(string(data))
		names = append(names, name)
	}
	if len(names) == 0 {
		return ErrNoModes
	}
	sort.Strings(names)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.modes = modes
	l.names = names
	if _, ok := modes[l.active]; !ok {
		if _, ok := modes[DefaultMode]; ok {
			l.active = DefaultMode
		} else {
			l.active = names[0]
		}
	}
	return nil
}

// Names returns the mode names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.names...)
}

// Active returns the active mode name.
func (l *Library) Active() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Instructions returns the active mode's instruction text.
func (l *Library) Instructions() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modes[l.active]
}

// SetActive selects a mode by name.
func (l *Library) SetActive(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.modes[name]; !ok {
		return fmt.Errorf("unknown mode %q", name)
	}
	l.active = name
	return nil
}

// Next advances to the next mode in name order, wrapping around, and
// returns the new active name.
func (l *Library) Next() string {
	return l.cycle(1)
}

// Prev steps back to the previous mode in name order, wrapping around,
// and returns the new active name.
func (l *Library) Prev() string {
	return l.cycle(-1)
}

func (l *Library) cycle(dir int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.names) == 0 {
		return l.active
	}
	idx := 0
	for i, name := range l.names {
		if name == l.active {
			idx = (i + dir + len(l.names)) % len(l.names)
			break
		}
	}
	l.active = l.names[idx]
	return l.active
}

// Watch reloads the library when mode files change. onReload, if not
// nil, is called after each successful reload.
func (l *Library) Watch(onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}

	l.watcher = watcher
	l.done = make(chan struct{})
	l.wg.Add(1)
	go l.watchLoop(onReload)
	return nil
}

func (l *Library) watchLoop(onReload func()) {
	defer l.wg.Done()
	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".txt") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// A failed reload keeps the previous library.
			if err := l.Load(); err == nil && onReload != nil {
				onReload()
			}
		case _, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
		case <-l.done:
			return
		}
	}
}

// Close stops watching. The library remains usable.
func (l *Library) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.done)
	err := l.watcher.Close()
	l.wg.Wait()
	l.watcher = nil
	return err
}

// WriteDefaults populates dir with a starter mode set. Existing files
// are left alone.
func WriteDefaults(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create modes dir: %w", err)
	}
	defaults := map[string]string{
		DefaultMode: "Transcribe the dictation verbatim. Correct earlier words only when later context makes the fix unambiguous.",
		"formal":    "Transcribe the dictation in formal register. Expand contractions and prefer complete sentences.",
		"notes":     "Transcribe the dictation as terse notes. Drop filler words.",
	}
	for name, text := range defaults {
		path := filepath.Join(dir, name+".txt")
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(text+"\n"), 0600); err != nil {
			return fmt.Errorf("write mode %s: %w", name, err)
		}
	}
	return nil
}
