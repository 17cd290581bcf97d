package jvmgen

import (
	"bytes"
	"errors"
	"testing"
)

// ============================================================================
// ByteWriter
// ============================================================================

func TestByteWriterBigEndian(t *testing.T) {
	w := NewByteWriter()
	w.WriteU8(0x01)
	w.WriteU16(0x0203)
	w.WriteI16(-2)
	w.WriteU32(0x04050607)
	w.WriteI32(-1)
	w.WriteU64(0x08090a0b0c0d0e0f)
	w.WriteBytes([]byte{0xaa})
	w.WriteString("z")

	want := []byte{
		0x01,
		0x02, 0x03,
		0xff, 0xfe,
		0x04, 0x05, 0x06, 0x07,
		0xff, 0xff, 0xff, 0xff,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
		0xaa,
		'z',
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("Expected % x, got % x", want, w.Bytes())
	}
	if w.Len() != len(want) {
		t.Errorf("Expected length %d, got %d", len(want), w.Len())
	}

	w.Reset()
	if w.Len() != 0 {
		t.Errorf("Expected empty writer after Reset")
	}
}

func TestPutHelpers(t *testing.T) {
	b := make([]byte, 8)
	PutU16(b, 0, 0xbeef)
	PutI16(b, 2, -4)
	PutI32(b, 4, -2)

	want := []byte{0xbe, 0xef, 0xff, 0xfc, 0xff, 0xff, 0xff, 0xfe}
	if !bytes.Equal(b, want) {
		t.Errorf("Expected % x, got % x", want, b)
	}
}

// ============================================================================
// Modified UTF-8
// ============================================================================

func TestModifiedUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"ascii", "Ab", []byte{'A', 'b'}},
		{"nul", "a\x00", []byte{'a', 0xc0, 0x80}},
		{"two byte", "é", []byte{0xc3, 0xa9}},
		{"three byte", "中", []byte{0xe4, 0xb8, 0xad}},
		{"supplementary", "😀", []byte{0xed, 0xa0, 0xbd, 0xed, 0xb8, 0x80}},
		{"empty", "", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeModifiedUTF8(tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Expected % x, got % x", tt.want, got)
			}
			back, err := DecodeModifiedUTF8(got)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if back != tt.in {
				t.Errorf("Expected %q, got %q", tt.in, back)
			}
		})
	}
}

func TestModifiedUTF8Invalid(t *testing.T) {
	for _, b := range [][]byte{
		{0x00},
		{0xc3},
		{0xe4, 0xb8},
		{0xf0, 0x9f, 0x98, 0x80},
	} {
		if _, err := DecodeModifiedUTF8(b); err == nil {
			t.Errorf("Expected error for % x", b)
		}
	}
}

// ============================================================================
// Reader
// ============================================================================

// minimalClass this=#2 (Class #1 "A")，无父类、成员和属性
func minimalClass() *ByteWriter {
	w := NewByteWriter()
	w.WriteU32(ClassFileMagic)
	w.WriteU16(0)
	w.WriteU16(ClassMajorVersion)
	w.WriteU16(5) // #1 Utf8, #2 Class, #3-#4 Long
	w.WriteU8(ConstantUtf8)
	w.WriteU16(1)
	w.WriteString("A")
	w.WriteU8(ConstantClass)
	w.WriteU16(1)
	w.WriteU8(ConstantLong)
	w.WriteU64(7)
	w.WriteU16(AccPublic)
	w.WriteU16(2)
	w.WriteU16(0)
	w.WriteU16(0) // interfaces
	w.WriteU16(0) // fields
	w.WriteU16(0) // methods
	w.WriteU16(0) // attributes
	return w
}

func TestReadClass(t *testing.T) {
	cls, err := ReadClass(minimalClass().Bytes())
	if err != nil {
		t.Fatalf("ReadClass failed: %v", err)
	}
	if cls.PoolCount != 5 || len(cls.Pool) != 3 {
		t.Fatalf("Expected count 5 with 3 items, got %d / %d", cls.PoolCount, len(cls.Pool))
	}
	if cls.ClassName(cls.ThisClass) != "A" {
		t.Errorf("Expected this class A, got %q", cls.ClassName(cls.ThisClass))
	}
	if _, ok := cls.Item(4); ok {
		t.Errorf("Expected no item in the second Long slot")
	}
	if it, ok := cls.Item(3); !ok || it.Tag != ConstantLong || it.Bits != 7 {
		t.Errorf("Expected Long 7 at #3, got %v", it)
	}
}

func TestReadClassErrors(t *testing.T) {
	good := minimalClass().Bytes()

	badMagic := append([]byte{}, good...)
	badMagic[0] = 0

	badTag := append([]byte{}, good...)
	badTag[10] = 99

	tests := []struct {
		name string
		data []byte
	}{
		{"bad magic", badMagic},
		{"truncated", good[:len(good)-3]},
		{"trailing", append(append([]byte{}, good...), 0)},
		{"unknown tag", badTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadClass(tt.data)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Errorf("Expected *FormatError, got %v", err)
			}
		})
	}
}

func TestOpcodeName(t *testing.T) {
	tests := []struct {
		op   int
		want string
	}{
		{OpNop, "nop"},
		{OpLdc, "ldc"},
		{OpTableswitch, "tableswitch"},
		{OpJsrW, "jsr_w"},
		{-1, "opcode(-1)"},
		{MaxOpcode + 1, "opcode(202)"},
	}
	for _, tt := range tests {
		if got := OpcodeName(tt.op); got != tt.want {
			t.Errorf("OpcodeName(%d): Expected %q, got %q", tt.op, tt.want, got)
		}
	}
}
