package replica

import (
	"testing"
	"time"
)

func TestRegistrationBackoffReadyBeforeAnyFailure(t *testing.T) {
	b := newRegistrationBackoff(time.Second, 2, time.Minute)
	if !b.Ready() {
		t.Fatal("expected a fresh backoff to be ready")
	}
}

func TestRegistrationBackoffNotReadyImmediatelyAfterFailure(t *testing.T) {
	b := newRegistrationBackoff(time.Second, 2, time.Minute)
	b.Failed()
	if b.Ready() {
		t.Fatal("expected backoff to hold off retries right after a failure")
	}
}

func TestRegistrationBackoffResetRestoresReadiness(t *testing.T) {
	b := newRegistrationBackoff(time.Second, 2, time.Minute)
	b.Failed()
	b.Reset()
	if !b.Ready() {
		t.Fatal("expected Reset to restore immediate readiness")
	}
}
