// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "time"

// HealthMonitor drives the periodic acknowledgment-staleness probe.
// The controller loop consumes its tick channel and asks Stale once
// per tick; one stale record is enough to trigger a reconnect, so the
// scan stops at the first hit. Reentrancy is handled by the
// controller's reconnecting guard, not here.
type HealthMonitor struct {
	interval   time.Duration
	ackTimeout time.Duration
	ticker     *time.Ticker
}

func NewHealthMonitor(interval, ackTimeout time.Duration) *HealthMonitor {
	return &HealthMonitor{interval: interval, ackTimeout: ackTimeout}
}

// Start begins ticking. Safe to call again after Stop.
func (m *HealthMonitor) Start() {
	if m.ticker != nil {
		m.ticker.Stop()
	}
	m.ticker = time.NewTicker(m.interval)
}

// C returns the tick channel, nil before Start so it blocks forever in
// a select.
func (m *HealthMonitor) C() <-chan time.Time {
	if m.ticker == nil {
		return nil
	}
	return m.ticker.C
}

// Stale reports whether the tracker holds an acknowledgment older than
// the timeout.
func (m *HealthMonitor) Stale(t *Tracker, now time.Time) bool {
	return t.PendingOlderThan(m.ackTimeout, now)
}

func (m *HealthMonitor) Stop() {
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
}
