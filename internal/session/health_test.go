// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"
	"time"
)

func TestHealthMonitorStale(t *testing.T) {
	m := NewHealthMonitor(time.Second, 3*time.Second)
	tr := NewTracker(func([]byte) error { return nil })
	base := time.Now()

	if m.Stale(tr, base) {
		t.Error("empty tracker reported stale")
	}

	tr.Send([]int16{1}, base)
	tr.Send([]int16{2}, base.Add(time.Second))

	if m.Stale(tr, base.Add(2*time.Second)) {
		t.Error("fresh records reported stale")
	}
	// One stale record suffices even though another is fresh.
	if !m.Stale(tr, base.Add(3500*time.Millisecond)) {
		t.Error("record 3.5s old not reported stale")
	}
}

func TestHealthMonitorTickerLifecycle(t *testing.T) {
	m := NewHealthMonitor(5*time.Millisecond, time.Second)

	if m.C() != nil {
		t.Fatal("tick channel non-nil before Start")
	}

	m.Start()
	select {
	case <-m.C():
	case <-time.After(time.Second):
		t.Fatal("no tick after Start")
	}

	m.Stop()
	if m.C() != nil {
		t.Error("tick channel non-nil after Stop")
	}
}
