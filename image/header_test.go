package image

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		HeadVers:    Version,
		ImgIndex:    7,
		ImgType:     TypeApp,
		DataPadding: 0x200,
		DataSize:    4096,
		DataVers:    Semver(1, 2, 3),
		ImgTime:     1_700_000_000,
	}

	buf := Encode(&h)
	got, err := Decode(buf[:])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.ImgIndex != h.ImgIndex || got.ImgType != h.ImgType ||
		got.DataPadding != h.DataPadding || got.DataSize != h.DataSize ||
		got.DataVers != h.DataVers || got.ImgTime != h.ImgTime {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDecodeRejectsBadCrc(t *testing.T) {
	h := Header{HeadVers: Version, ImgIndex: 1, ImgType: TypeApp, DataSize: 10}
	buf := Encode(&h)
	buf[0] ^= 0xFF // corrupt a header field without touching the CRC

	if _, err := Decode(buf[:]); err == nil {
		t.Fatal("expected Decode to reject a tampered header")
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, err := Decode(make([]byte, HeaderSize-1)); err == nil {
		t.Fatal("expected Decode to reject a too-short buffer")
	}
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	h := Header{HeadVers: 0x00020000, ImgType: TypeApp}
	buf := Encode(&h)
	if _, err := Decode(buf[:]); err == nil {
		t.Fatal("expected Decode to reject an unknown header version")
	}
}

func TestSemver(t *testing.T) {
	tests := []struct {
		major, minor, patch uint8
		want                uint32
	}{
		{1, 0, 0, 0x010000},
		{0, 1, 0, 0x000100},
		{1, 2, 3, 0x010203},
		{255, 255, 255, 0xFFFFFF},
	}
	for _, tc := range tests {
		if got := Semver(tc.major, tc.minor, tc.patch); got != tc.want {
			t.Errorf("Semver(%d,%d,%d) = %#x, want %#x", tc.major, tc.minor, tc.patch, got, tc.want)
		}
	}
}
