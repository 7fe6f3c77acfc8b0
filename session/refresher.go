package session

import (
	"context"
	"time"

	estate "github.com/homequest/estate-go"
)

// startRefresher schedules the recurring background refresh. Any prior timer
// is stopped first; overlapping timers would double-refresh and could race
// token writes.
func (m *Manager) startRefresher() {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.stopLocked()
	stop := make(chan struct{})
	m.refreshStop = stop
	go m.runRefresher(stop)
}

// Stop cancels the background refresher. Idempotent. Stopping is effective
// for future ticks immediately but cannot cancel a refresh call already in
// flight.
func (m *Manager) Stop() {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.refreshStop != nil {
		close(m.refreshStop)
		m.refreshStop = nil
	}
}

// release deregisters a timer that is exiting on its own, without touching a
// successor that may already have been started.
func (m *Manager) release(stop chan struct{}) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	if m.refreshStop == stop {
		m.refreshStop = nil
	}
}

// runRefresher is the body of the background timer. Each tick skips silently
// when no token is stored, persists the renewed token on success, and exits
// on any failure, with a full logout only when the server itself rejected the
// refresh. Transient transport trouble stops the timer without touching the
// session.
func (m *Manager) runRefresher(stop chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, ok := m.store.Get(); !ok {
				continue
			}

			// Background work outlives any caller, so each tick gets a
			// fresh top-level context.
			_, err := m.RefreshNow(context.Background())
			switch {
			case err == nil:
				m.metrics.RecordTokenRefresh("periodic", "success")
			case estate.IsNoResponse(err):
				m.metrics.RecordTokenRefresh("periodic", "failure")
				m.logger.Warn("periodic refresh failed without a response, stopping refresher", "error", err)
				m.release(stop)
				return
			default:
				m.metrics.RecordTokenRefresh("periodic", "failure")
				m.metrics.RecordForcedLogout("refresh_rejected")
				m.logger.Warn("server rejected periodic refresh, logging out", "error", err)
				m.Logout(context.Background())
				return
			}
		}
	}
}
