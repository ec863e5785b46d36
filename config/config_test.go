package config

import "testing"

func TestDefaultsWhenOverridesEmpty(t *testing.T) {
	if got := MailboxVersion(); got != DefaultMailboxVersion {
		t.Errorf("MailboxVersion() = %d, want %d", got, DefaultMailboxVersion)
	}
	if got := MailboxSignature(); got != DefaultMailboxSignature {
		t.Errorf("MailboxSignature() = %#x, want %#x", got, DefaultMailboxSignature)
	}
	if got := VTOROffset(); got != DefaultVTOROffset {
		t.Errorf("VTOROffset() = %#x, want %#x", got, DefaultVTOROffset)
	}
	if got := OTAPort(); got != DefaultOTAPort {
		t.Errorf("OTAPort() = %d, want %d", got, DefaultOTAPort)
	}
	if got := ConsolePort(); got != DefaultConsolePort {
		t.Errorf("ConsolePort() = %d, want %d", got, DefaultConsolePort)
	}
}

func TestParseUint(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		bits   int
		want   uint64
		wantOk bool
	}{
		{"empty falls back", "", 32, 0, false},
		{"whitespace only falls back", "   \n", 32, 0, false},
		{"decimal", "1234", 32, 1234, true},
		{"hex", "0x1B241671", 32, 0x1B241671, true},
		{"overflow for width rejected", "999", 8, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseUint(tc.raw, tc.bits)
			if ok != tc.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOk)
			}
			if ok && got != tc.want {
				t.Errorf("got = %d, want %d", got, tc.want)
			}
		})
	}
}
