package mailbox

import "testing"

func TestNewRejectsWrongSize(t *testing.T) {
	if _, err := New(make([]byte, Size-1)); err == nil {
		t.Fatal("expected New to reject a short region")
	}
}

func TestSetGetClearRoundTrip(t *testing.T) {
	region := make([]byte, Size)
	for i := range region {
		region[i] = 0xAA // simulate un-initialized RAM, not all zero
	}
	m, err := New(region)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if m.Check() {
		t.Fatal("expected a garbage-filled region to fail Check before Set")
	}

	psk := []byte("0123456789abcdef0123456789abcdef")[:32]
	if err := m.Set(psk); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !m.Check() {
		t.Fatal("expected Check to pass after Set")
	}

	got, err := m.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(psk) {
		t.Errorf("Get = %x, want %x", got, psk)
	}

	m.Clear()
	if m.Check() {
		t.Fatal("expected Check to fail after Clear")
	}
	if _, err := m.Get(); err == nil {
		t.Fatal("expected Get to fail after Clear")
	}
}

func TestSetRejectsOversizedPSK(t *testing.T) {
	m, err := New(make([]byte, Size))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Set(make([]byte, 33)); err == nil {
		t.Fatal("expected Set to reject a PSK longer than 32 bytes")
	}
}

func TestGetRejectsUnstampedRegion(t *testing.T) {
	m, err := New(make([]byte, Size))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Get(); err == nil {
		t.Fatal("expected Get to reject a never-Set mailbox")
	}
}
