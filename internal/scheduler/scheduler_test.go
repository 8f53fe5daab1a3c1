package scheduler

import "testing"

func TestStartRejectsBadSpec(t *testing.T) {
	s := New("every day at three", func() {})
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestStartStop(t *testing.T) {
	s := New("0 3 * * *", func() {})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()
}

func TestFireInvokesCallback(t *testing.T) {
	called := false
	s := New("@daily", func() { called = true })

	s.fire()

	if !called {
		t.Fatal("fire() did not invoke the callback")
	}
}
