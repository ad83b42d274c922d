// Package health tracks liveness of periodic background work.
package health

import (
	"sync/atomic"
	"time"
)

// PassMonitor tracks whether a periodic pass is still completing.
// It is intentionally lightweight and dependency-free (std only).
type PassMonitor struct {
	lastPassUnixNano atomic.Int64
	lastErr          atomic.Value // string
}

// MarkPass records a completed pass.
func (m *PassMonitor) MarkPass() {
	m.lastPassUnixNano.Store(time.Now().UnixNano())
}

func (m *PassMonitor) SetError(err error) {
	if err == nil {
		return
	}
	m.lastErr.Store(err.Error())
}

func (m *PassMonitor) LastError() string {
	if v := m.lastErr.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Healthy returns whether a pass has completed recently.
// If MarkPass() has never been called, it returns ok=false.
func (m *PassMonitor) Healthy(now time.Time, maxAge time.Duration) (ok bool, age time.Duration, lastErr string) {
	lastErr = m.LastError()
	last := m.lastPassUnixNano.Load()
	if last <= 0 {
		return false, 0, lastErr
	}
	t := time.Unix(0, last)
	if now.Before(t) {
		return true, 0, lastErr
	}
	age = now.Sub(t)
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	return age <= maxAge, age, lastErr
}
