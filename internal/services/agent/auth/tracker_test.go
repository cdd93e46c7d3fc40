package auth

import "testing"

func TestTrackerIndependentOperations(t *testing.T) {
	tracker := NewTracker()

	login := tracker.Begin(MethodLogin)
	google := tracker.Begin(MethodGoogle)
	if login == google {
		t.Fatal("Begin() returned the same id for two operations")
	}
	if !tracker.InFlight(login) || !tracker.InFlight(google) {
		t.Fatal("both operations should be in flight")
	}

	tracker.End(login)
	if tracker.InFlight(login) {
		t.Fatal("ended operation still in flight")
	}
	if !tracker.InFlight(google) {
		t.Fatal("ending one operation cleared another")
	}

	tracker.End(google)
	if tracker.AnyInFlight() {
		t.Fatal("tracker not empty after all operations ended")
	}
}

func TestTrackerEndUnknownID(t *testing.T) {
	tracker := NewTracker()
	tracker.End("no-such-operation")
	if tracker.AnyInFlight() {
		t.Fatal("ending an unknown id must not register work")
	}
}
