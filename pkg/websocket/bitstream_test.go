package websocket

import "testing"

func TestReadBitsLE(t *testing.T) {
	// 0b10110010 read LSB-first should yield 0,1,0,0,1,1,0,1.
	a := NewByteArray([]byte{0b10110010})
	want := []uint32{0, 1, 0, 0, 1, 1, 0, 1}
	cursor := bitCursor(0)
	for i, w := range want {
		var v uint32
		v, cursor = a.ReadBitsLE(cursor, 1)
		if v != w {
			t.Errorf("bit %d = %d, want %d", i, v, w)
		}
	}
}

func TestReadHuffmanBitsMSBFirst(t *testing.T) {
	// 0b10110010: the cursor visits bits from the LSB (0,1,0,0,...); a
	// 4-bit read puts the first visited bit in the MSB, giving 0b0100 = 4
	// (an LSB-first read of the same bits would give 0b0010).
	a := NewByteArray([]byte{0b10110010})
	v, next := a.ReadHuffmanBits(0, 4)
	if v != 0b0100 {
		t.Errorf("ReadHuffmanBits() = %b, want %b", v, 0b0100)
	}
	if next != 4 {
		t.Errorf("next cursor = %d, want 4", next)
	}
}

func TestClearBitGrowsBuffer(t *testing.T) {
	a := NewByteArray(nil)
	a.ClearBit(10)
	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}
	if a.GetByte(1) != 0 {
		t.Errorf("GetByte(1) = %d, want 0", a.GetByte(1))
	}
}

func TestAlignByte(t *testing.T) {
	cases := []struct {
		in, want bitCursor
	}{
		{0, 0},
		{1, 8},
		{7, 8},
		{8, 8},
		{9, 16},
	}
	for _, c := range cases {
		if got := AlignByte(c.in); got != c.want {
			t.Errorf("AlignByte(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestShrinkRetainsSuffix(t *testing.T) {
	a := NewByteArray([]byte{1, 2, 3, 4, 5})
	a.Shrink(2)
	if got := a.Bytes(); string(got) != string([]byte{4, 5}) {
		t.Errorf("Shrink() left %v, want [4 5]", got)
	}
}
