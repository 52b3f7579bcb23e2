package protover

import "testing"

func TestCRC16Deterministic(t *testing.T) {
	a := CRC16()
	b := crc16([]byte(Version))
	if a != b {
		t.Fatalf("CRC16() = %#04x, want %#04x", a, b)
	}
}

func TestValid(t *testing.T) {
	if !Valid(CRC16()) {
		t.Fatal("Valid(CRC16()) = false, want true")
	}
	if Valid(CRC16() ^ 1) {
		t.Fatal("Valid(CRC16()^1) = true, want false")
	}
}

func TestCRC16TableRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("a"),
		[]byte(Version),
		[]byte("physync-9.9.9"),
	}
	seen := map[uint16]bool{}
	for _, c := range cases {
		v := crc16(c)
		if seen[v] && len(c) > 0 {
			t.Logf("collision for input %q is not itself a bug, only suspicious", c)
		}
		seen[v] = true
	}
}
