package session

import "testing"

func TestGuardSingleFlightPerKind(t *testing.T) {
	g := NewGuard()
	if !g.TryAcquire(KindConnection) {
		t.Fatalf("first acquire should succeed")
	}
	if g.TryAcquire(KindConnection) {
		t.Fatalf("second acquire of same kind should fail")
	}
	if !g.TryAcquire(KindVoiceTurn) {
		t.Fatalf("kinds must not share a namespace")
	}

	g.Release(KindConnection)
	if !g.TryAcquire(KindConnection) {
		t.Fatalf("acquire after release should succeed")
	}
}

func TestGuardReleaseWithoutAcquireIsNoOp(t *testing.T) {
	g := NewGuard()
	g.Release(KindConnection)
	g.Release(KindConnection)
	if !g.TryAcquire(KindConnection) {
		t.Fatalf("acquire should succeed after spurious releases")
	}
}
