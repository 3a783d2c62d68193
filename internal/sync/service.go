package sync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// syncEntry tracks a running sync's cancel function and progress.
type syncEntry struct {
	cancel    context.CancelFunc
	startedAt time.Time
	progress  string // human-readable status
	lastError string
}

// Service runs account syncs in the background: one-shot triggers from the
// control API plus a periodic schedule per account.
type Service struct {
	mu      sync.Mutex
	engine  *Engine
	running map[string]*syncEntry // accountID -> entry
	tickers map[string]context.CancelFunc
}

// NewService creates the background sync service.
func NewService(engine *Engine) *Service {
	return &Service{
		engine:  engine,
		running: make(map[string]*syncEntry),
		tickers: make(map[string]context.CancelFunc),
	}
}

// SyncAccount triggers a sync for a single account. Non-blocking; runs in
// background. Returns an error if a sync is already running.
func (s *Service) SyncAccount(accountID string) error {
	s.mu.Lock()
	if e, ok := s.running[accountID]; ok && e != nil {
		s.mu.Unlock()
		return fmt.Errorf("sync already running for account %s", accountID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running[accountID] = &syncEntry{
		cancel:    cancel,
		startedAt: time.Now(),
		progress:  "starting",
	}
	s.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.running, accountID)
			s.mu.Unlock()
		}()

		s.setProgress(accountID, "syncing", "")
		changed, err := s.engine.SyncFolders(ctx, accountID)
		if err != nil {
			s.setProgress(accountID, "", err.Error())
			log.Printf("ERROR: sync account %s: %v", accountID, err)
			return
		}
		s.setProgress(accountID, "done", "")
		_ = changed
	}()
	return nil
}

// CancelSync stops a running sync for an account, if any.
func (s *Service) CancelSync(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.running[accountID]; ok && e != nil {
		e.cancel()
		return true
	}
	return false
}

// Status describes a running sync for the control API.
type Status struct {
	AccountID string    `json:"account_id"`
	StartedAt time.Time `json:"started_at"`
	Progress  string    `json:"progress"`
	LastError string    `json:"last_error,omitempty"`
}

// RunningSyncs lists syncs currently in flight.
func (s *Service) RunningSyncs() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.running))
	for id, e := range s.running {
		out = append(out, Status{
			AccountID: id,
			StartedAt: e.startedAt,
			Progress:  e.progress,
			LastError: e.lastError,
		})
	}
	return out
}

// Schedule starts the periodic sync loop for an account. interval comes
// from the account's sync settings. Rescheduling replaces the old loop.
func (s *Service) Schedule(accountID string, interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	if cancel, ok := s.tickers[accountID]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.tickers[accountID] = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.SyncAccount(accountID); err != nil {
					// Already running; skip this tick.
					continue
				}
			}
		}
	}()
	log.Printf("INFO: scheduled account %s every %s", accountID, interval)
}

// Unschedule stops the periodic loop for an account.
func (s *Service) Unschedule(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.tickers[accountID]; ok {
		cancel()
		delete(s.tickers, accountID)
	}
}

// Shutdown cancels all running syncs and schedules.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.running {
		e.cancel()
	}
	for id, cancel := range s.tickers {
		cancel()
		delete(s.tickers, id)
	}
}

func (s *Service) setProgress(accountID, progress, lastError string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.running[accountID]; ok && e != nil {
		e.progress = progress
		e.lastError = lastError
	}
}
