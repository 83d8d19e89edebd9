package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ezlinkai/ai-image-generator/common/logger"
	"github.com/pkg/errors"
)

type managedShell struct {
	shell      *Shell
	lastAccess time.Time
}

// ShellManager hands out one Shell per session, restoring it from the store when the
// process has not seen the session yet and saving it after every change.
type ShellManager struct {
	mutex     sync.Mutex
	shells    map[string]*managedShell
	store     ShellStore
	generator ImageGenerator
	selector  KeySelector
	opts      []ShellOption
	now       func() time.Time
}

func NewShellManager(store ShellStore, generator ImageGenerator, selector KeySelector, opts ...ShellOption) *ShellManager {
	return &ShellManager{
		shells:    make(map[string]*managedShell),
		store:     store,
		generator: generator,
		selector:  selector,
		opts:      opts,
		now:       time.Now,
	}
}

func (m *ShellManager) Get(ctx context.Context, sessionId string) (*Shell, error) {
	if sessionId == "" {
		return nil, errors.New("empty session id")
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if managed, ok := m.shells[sessionId]; ok {
		managed.lastAccess = m.now()
		return managed.shell, nil
	}

	saved, err := m.store.Get(ctx, sessionId)
	if errors.Is(err, ErrCorruptShellState) {
		logger.Warnf(ctx, "discarding unreadable shell state: %s", err.Error())
		if err := m.store.Delete(ctx, sessionId); err != nil {
			return nil, err
		}
		saved, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state ShellState
	if saved != nil {
		state = *saved
	} else {
		hasKey, err := m.selector.HasSelectedKey(ctx)
		if err != nil {
			logger.Warnf(ctx, "check selected key failed: %s", err.Error())
		}
		state = NewShellState(hasKey)
	}

	opts := make([]ShellOption, 0, len(m.opts)+2)
	opts = append(opts, m.opts...)
	opts = append(opts, WithState(state), WithOnChange(m.persist(sessionId)))
	shell := NewShell(m.generator, m.selector, opts...)
	m.shells[sessionId] = &managedShell{shell: shell, lastAccess: m.now()}
	return shell, nil
}

func (m *ShellManager) persist(sessionId string) func(ctx context.Context, state ShellState) {
	return func(ctx context.Context, state ShellState) {
		if err := m.store.Save(ctx, sessionId, state); err != nil {
			logger.Errorf(ctx, "save shell state failed: %s", err.Error())
		}
	}
}

// Sweep drops shells idle for longer than idle from memory; their state stays in the store.
// Shells with a generation in flight are kept.
func (m *ShellManager) Sweep(idle time.Duration) int {
	m.mutex.Lock()
	removed := 0
	now := m.now()
	for sessionId, managed := range m.shells {
		if now.Sub(managed.lastAccess) > idle && !managed.shell.Loading() {
			delete(m.shells, sessionId)
			removed++
		}
	}
	m.mutex.Unlock()

	if sweeper, ok := m.store.(interface{ Sweep() int }); ok {
		removed += sweeper.Sweep()
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (m *ShellManager) StartSweeper(ctx context.Context, interval time.Duration, idle time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(idle); removed > 0 {
				logger.SysLog(fmt.Sprintf("swept %d idle shell states", removed))
			}
		}
	}
}
