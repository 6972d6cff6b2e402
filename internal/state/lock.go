// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/tikibozo/kometa-ai/internal/logging"
)

const lockFileName = "kometa_state.lock"

// Lock is an exclusive advisory lock on the state directory, preventing
// two processes from mutating the same state.
type Lock struct {
	path string
}

// AcquireLock takes the state-directory lock. It fails immediately if
// another live process holds it; callers are expected to exit rather
// than wait. A lock left by a dead process is reclaimed.
func AcquireLock(stateDir string) (*Lock, error) {
	path := filepath.Join(stateDir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if os.IsExist(err) {
		holder, _ := os.ReadFile(path)
		pid, parseErr := strconv.Atoi(strings.TrimSpace(string(holder)))
		if parseErr == nil && !processAlive(pid) {
			logging.Warn().Int("pid", pid).Str("file", path).Msg("reclaiming stale state lock")
			_ = os.Remove(path)
			f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		} else {
			return nil, fmt.Errorf("state is locked by another process (pid %s); remove %s if stale", strings.TrimSpace(string(holder)), path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire state lock: %w", err)
	}

	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write state lock: %w", err)
	}

	logging.Debug().Str("file", path).Msg("state lock acquired")
	return &Lock{path: path}, nil
}

// processAlive reports whether a process with the given pid exists.
// Signal 0 performs the existence check without delivering anything.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}

// Release removes the lock file.
func (l *Lock) Release() {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		logging.Err(err).Str("file", l.path).Msg("failed to release state lock")
	}
}
