package scheduler

import "testing"

func TestNew_AcceptsDescriptorSpecs(t *testing.T) {
	s, err := New("@every 6h", func() {})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Start()
	s.Stop()
}

func TestNew_RejectsInvalidSpec(t *testing.T) {
	if _, err := New("not a cron spec", func() {}); err == nil {
		t.Error("New() with garbage spec: expected error, got nil")
	}
}
