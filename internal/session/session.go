// Package session coordinates one dictation session end to end: it
// feeds wire chunks to the parser, applies reconstructed updates to the
// reconciliation engine, tees the resulting operations into the
// transcript store, and handles in-band reset tags by re-baselining
// from the engine's current target text.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"dictated/internal/feed"
	"dictated/internal/logging"
	"dictated/internal/reconcile"
	"dictated/internal/transcript"
	"dictated/internal/wordstream"
)

// Config wires a session's collaborators.
type Config struct {
	// Sink receives the delete and insert operations.
	Sink reconcile.Sink

	// Store, when non-nil, records the session transcript.
	Store *transcript.Store

	// Log defaults to the process logger.
	Log *logging.Logger

	// LogContent enables word content in debug logs. Off by default so
	// dictated text stays out of log files.
	LogContent bool

	// BaselineStep is the position gap used when re-baselining from
	// plain text.
	BaselineStep int
}

// pusher is a sink that accumulates operations and pushes the result to
// the output surface in batches (the clipboard sink).
type pusher interface {
	Paste() error
}

// seeder is a sink that mirrors the surface text and must start from
// the baseline (the clipboard shadow).
type seeder interface {
	SetText(text string)
}

// Session is the single-threaded dictation coordinator. All methods
// serialize on an internal mutex; calls must not be made reentrantly
// from a Sink.
type Session struct {
	mu sync.Mutex

	parser *wordstream.Parser
	engine *reconcile.Engine
	rec    *reconcile.Recorder
	push   pusher
	seed   seeder

	store     *transcript.Store
	storeID   int64
	storeOpen bool
	seq       int

	log        *logging.Logger
	logContent bool
	step       int
	ended      bool
}

// New creates a session writing to cfg.Sink, with an empty baseline.
func New(cfg Config) *Session {
	log := cfg.Log
	if log == nil {
		log = logging.Default()
	}
	step := cfg.BaselineStep
	if step <= 0 {
		step = reconcile.DefaultStep
	}

	rec := &reconcile.Recorder{Forward: cfg.Sink}
	s := &Session{
		parser:     wordstream.NewParser(),
		engine:     reconcile.NewEngine(rec),
		rec:        rec,
		store:      cfg.Store,
		log:        log,
		logContent: cfg.LogContent,
		step:       step,
	}
	if p, ok := cfg.Sink.(pusher); ok {
		s.push = p
	}
	if sd, ok := cfg.Sink.(seeder); ok {
		s.seed = sd
	}
	return s
}

// Reset discards all parser and engine state and installs baseline as
// the new position-to-content snapshot. The caller must ensure the
// output surface already displays the baseline text.
func (s *Session) Reset(baseline map[int]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(baseline)
}

// ResetText is Reset with the baseline derived from plain text using
// the session's position step.
func (s *Session) ResetText(text string) {
	s.Reset(reconcile.BaselineFromText(text, s.step).Mapping())
}

func (s *Session) resetLocked(baseline map[int]string) {
	s.finishStoreLocked(s.engine.Text())
	s.parser.Reset()
	base := reconcile.NewBaseline(baseline)
	s.engine.Reset(base)
	if s.seed != nil {
		s.seed.SetText(base.Text())
	}
	s.ended = false
	s.seq = 0
	s.beginStoreLocked(baseline)
	s.log.Debug("session reset", "baseline_slots", len(baseline))
}

// ProcessChunk feeds one wire chunk through the parser and applies
// every completed update. Malformed input and out-of-order records are
// dropped and reported in the joined return error; processing always
// continues, so a non-nil error does not mean the chunk was rejected.
func (s *Session) ProcessChunk(chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	changed := false
	for _, u := range s.parser.Feed(chunk) {
		switch u.Kind {
		case wordstream.KindReset:
			if err := s.rebaselineLocked(); err != nil {
				errs = append(errs, err)
			} else {
				changed = true
			}
		case wordstream.KindWord:
			if err := s.applyLocked(u); err != nil {
				errs = append(errs, err)
			} else {
				changed = true
			}
		}
	}
	if changed && s.push != nil {
		if err := s.push.Paste(); err != nil {
			errs = append(errs, fmt.Errorf("paste: %w", err))
		}
	}
	return errors.Join(errs...)
}

// applyLocked applies one word update and records the operations it
// produced.
func (s *Session) applyLocked(u wordstream.Update) error {
	s.rec.Take()
	if err := s.engine.Apply(u.Pos, u.Text); err != nil {
		if errors.Is(err, reconcile.ErrOutOfOrder) {
			s.log.Warn("dropped out-of-order update", "pos", u.Pos)
			return err
		}
		return fmt.Errorf("apply update at %d: %w", u.Pos, err)
	}

	deleted := 0
	inserted := ""
	for _, op := range s.rec.Take() {
		deleted += op.Delete
		inserted += op.Insert
	}

	if s.logContent {
		s.log.Debug("update applied", "pos", u.Pos, "content", u.Text, "deleted", deleted)
	} else {
		s.log.Debug("update applied", "pos", u.Pos, "deleted", deleted, "inserted_len", len(inserted))
	}

	if s.storeOpen {
		if err := s.store.AppendUpdate(s.storeID, s.seq, u.Pos, u.Text, deleted, inserted); err != nil {
			s.log.Warn("transcript append failed", "error", err)
		}
	}
	s.seq++
	return nil
}

// rebaselineLocked handles an in-band reset tag: the unemitted baseline
// tail is flushed so the surface displays the full target text, which
// then becomes the next session's baseline. The parser keeps its carry,
// since the tag may be followed by more records in the same chunk.
func (s *Session) rebaselineLocked() error {
	if err := s.engine.Flush(); err != nil {
		return fmt.Errorf("flush before rebaseline: %w", err)
	}
	snapshot := s.engine.Snapshot()
	s.finishStoreLocked(s.engine.Text())
	s.engine.Reset(reconcile.NewBaseline(snapshot))
	s.ended = false
	s.seq = 0
	s.beginStoreLocked(snapshot)
	s.log.Info("re-baselined on reset tag", "baseline_slots", len(snapshot))
	return nil
}

// EndStream flushes the remaining baseline tail to the sink and closes
// the transcript session. Calling it again without new updates is a
// no-op.
func (s *Session) EndStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if !s.ended {
		if _, started := s.engine.Cursor(); started && s.push != nil {
			if err := s.push.Paste(); err != nil {
				return fmt.Errorf("paste: %w", err)
			}
		}
		s.finishStoreLocked(s.engine.Text())
		s.ended = true
		s.log.Info("stream ended", "final_len", len(s.engine.Text()))
	}
	return nil
}

// Run consumes src until it ends, then flushes. Update-level errors are
// logged and do not stop the run; only source failures and context
// cancellation abort it.
func (s *Session) Run(ctx context.Context, src feed.Source) error {
	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return s.EndStream()
		}
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		if err := s.ProcessChunk(chunk); err != nil {
			s.log.Warn("chunk produced errors", "error", err)
		}
	}
}

// Text returns the engine's current target text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Text()
}

// Snapshot returns the current position-to-content mapping.
func (s *Session) Snapshot() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot()
}

func (s *Session) beginStoreLocked(baseline map[int]string) {
	if s.store == nil {
		return
	}
	id, err := s.store.BeginSession(baseline)
	if err != nil {
		s.log.Warn("transcript session not started", "error", err)
		s.storeOpen = false
		return
	}
	s.storeID = id
	s.storeOpen = true
}

func (s *Session) finishStoreLocked(finalText string) {
	if !s.storeOpen {
		return
	}
	if err := s.store.FinishSession(s.storeID, finalText); err != nil {
		s.log.Warn("transcript session not finished", "error", err)
	}
	s.storeOpen = false
}
