package cpool

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"

	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// ============================================================================
// 辅助
// ============================================================================

func looseP() *Pool {
	return New(WithStrictOrdering(false))
}

func mustResolve(t *testing.T, p *Pool) {
	t.Helper()
	if err := p.Resolve(); err != nil {
		t.Fatalf("Resolve failed: %v\n%s", err, p.Dump())
	}
}

func encodePool(t *testing.T, p *Pool) []byte {
	t.Helper()
	w := jvmgen.NewByteWriter()
	p.Encode(w)
	return w.Bytes()
}

func expectPanicCode(t *testing.T, code string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("Expected panic with %s, got none", code)
		}
		ae, ok := r.(*perrors.AssemblyError)
		if !ok {
			t.Fatalf("Expected *AssemblyError panic, got %T: %v", r, r)
		}
		if ae.Code != code {
			t.Errorf("Expected code %s, got %s", code, ae.Code)
		}
	}()
	fn()
}

// lateEntry 解析时才注册新条目，用于检查第二遍解析的一致性
type lateEntry struct {
	n int
}

func (e *lateEntry) NestedEntries() []Entry { return nil }

func (e *lateEntry) Resolve(p *Pool) error {
	e.n++
	p.Add(NewUtf8(fmt.Sprintf("late%d", e.n), DomainNormalUTF8))
	return nil
}

// ============================================================================
// 去重
// ============================================================================

func TestAddDeduplicates(t *testing.T) {
	p := looseP()
	a := p.Add(NewClass("java/lang/Object"))
	b := p.Add(NewClass("java/lang/Object"))

	if a != b {
		t.Errorf("Expected identical instance for equal classes")
	}
	if p.Size() != 1 {
		t.Errorf("Expected size 1, got %d", p.Size())
	}
}

func TestEqualityIgnoresProvenance(t *testing.T) {
	p := looseP()
	x := NewUtf8("value", DomainNormalUTF8)
	x.SetGlobalIndex(7)
	y := NewUtf8("value", DomainSignatureUTF8)

	if p.Add(x) != p.Add(y) {
		t.Errorf("Expected entries differing only in globalIndex/domain to be equal")
	}
	if p.Size() != 1 {
		t.Errorf("Expected size 1, got %d", p.Size())
	}
}

func TestFloatingPointIdentityByBits(t *testing.T) {
	tests := []struct {
		name string
		a, b Constant
		same bool
	}{
		{"float zero sign", NewFloat(0), NewFloatBits(0x80000000), false},
		{"float nan payload", NewFloatBits(0x7fc00000), NewFloatBits(0x7fc00001), false},
		{"float same", NewFloat(1.5), NewFloat(1.5), true},
		{"double zero sign", NewDouble(0), NewDoubleBits(0x8000000000000000), false},
		{"double same", NewDouble(2.25), NewDouble(2.25), true},
		{"int vs float", NewInteger(0), NewFloat(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := looseP()
			p.Add(tt.a)
			p.Add(tt.b)
			want := 2
			if tt.same {
				want = 1
			}
			if p.Size() != want {
				t.Errorf("Expected size %d, got %d", want, p.Size())
			}
		})
	}
}

func TestAuxiliaryEntriesByIdentity(t *testing.T) {
	p := looseP()
	a := &lateEntry{}
	b := &lateEntry{}
	p.Add(a)
	p.Add(a)
	p.Add(b)

	if len(p.Others()) != 2 {
		t.Errorf("Expected 2 auxiliary entries, got %d", len(p.Others()))
	}
	if p.Size() != 0 {
		t.Errorf("Expected auxiliary entries to take no pool slot, got size %d", p.Size())
	}
}

// ============================================================================
// 嵌套条目
// ============================================================================

func TestAddNestedEntriesReachesFixpoint(t *testing.T) {
	p := looseP()
	p.Add(Method("java/io/PrintStream", "println", "(Ljava/lang/String;)V"))
	p.Add(Field("java/lang/System", "out", "Ljava/io/PrintStream;"))
	p.AddNestedEntries()

	// Methodref, Fieldref, 2 Class, 2 NameAndType,
	// Utf8: PrintStream, System, println, out, 2 descriptors
	if p.Size() != 12 {
		t.Fatalf("Expected 12 entries, got %d\n%s", p.Size(), p.Dump())
	}
	for _, key := range []string{"U:println", "U:(Ljava/lang/String;)V", "C:java/lang/System"} {
		if _, ok := p.lookup[key]; !ok {
			t.Errorf("Expected nested entry %s to be discovered", key)
		}
	}
}

func TestAddWithNestedEntriesReturnsCanonical(t *testing.T) {
	p := looseP()
	first := p.AddWithNestedEntries(NewClass("A"))
	second := p.AddWithNestedEntries(NewClass("A"))

	if first != second {
		t.Errorf("Expected canonical instance to be returned")
	}
	if p.Size() != 2 {
		t.Errorf("Expected Class + Utf8, got %d entries", p.Size())
	}
}

// ============================================================================
// 解析
// ============================================================================

func TestTwoSlotRule(t *testing.T) {
	p := New()
	i := NewInteger(1)
	i.SetGlobalIndex(0)
	l := NewLong(1 << 40)
	l.SetGlobalIndex(1)
	f := NewFloat(3)
	f.SetGlobalIndex(2)
	p.Add(f)
	p.Add(l)
	p.Add(i)
	mustResolve(t, p)

	if p.SlotCount() != p.Size()+1 {
		t.Errorf("Expected %d slots, got %d", p.Size()+1, p.SlotCount())
	}
	if got := p.IndexOf(i); got != 1 {
		t.Errorf("Expected Integer at 1, got %d", got)
	}
	if got := p.IndexOf(l); got != 2 {
		t.Errorf("Expected Long at 2, got %d", got)
	}
	if got := p.IndexOf(f); got != p.IndexOf(l)+2 {
		t.Errorf("Expected Float at %d, got %d", p.IndexOf(l)+2, got)
	}
	if p.Get(3) != Constant(l) {
		t.Errorf("Expected dead slot 3 to belong to the Long")
	}

	encoded := encodePool(t, p)
	if count := int(encoded[0])<<8 | int(encoded[1]); count != 5 {
		t.Errorf("Expected constant_pool_count 5, got %d", count)
	}
}

func TestInitialSortBuckets(t *testing.T) {
	p := New()
	g1 := NewInteger(10)
	g1.SetGlobalIndex(5)
	g0 := NewString("x")
	g0.SetGlobalIndex(2)
	p.Add(NewClass("b/B"))
	p.Add(NewUtf8("zeta", DomainNormalUTF8))
	p.Add(g1)
	p.Add(NewClass("a/A"))
	p.Add(g0)
	p.Add(NewUtf8("alpha", DomainAttributeUTF8))
	mustResolve(t, p)

	want := []string{
		"S:x", "I:10", // 全局索引
		"U:a/A", "U:alpha", "U:b/B", "U:x", "U:zeta", // UTF8 按文本
		"C:a/A", "C:b/B", // Class 按类名
	}
	got := make([]string, 0, p.Size())
	for _, c := range p.Entries() {
		got = append(got, c.Key())
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected order %v, got %v", want, got)
	}
	for i, key := range want {
		if idx := p.IndexOf(p.entries[p.lookup[key]]); idx != i+1 {
			t.Errorf("Expected %s at %d, got %d", key, i+1, idx)
		}
	}
}

func TestStrictOrderingRejectsUnplaceableEntry(t *testing.T) {
	p := New()
	p.Add(NewInteger(3))
	err := p.Resolve()
	if perrors.CodeOf(err) != perrors.P0103 {
		t.Fatalf("Expected P0103, got %v", err)
	}
	if !perrors.IsFatal(err) {
		t.Errorf("Expected invariant violation to be fatal")
	}
	if p.Resolved() {
		t.Errorf("Expected pool to stay unresolved")
	}
}

func TestLooseOrderingPlacesByDomain(t *testing.T) {
	p := looseP()
	p.Add(NewDouble(1))
	p.Add(NewInteger(9))
	p.Add(NewInteger(1))
	mustResolve(t, p)

	want := []string{"I:1", "I:9", "D:3ff0000000000000"}
	for i, c := range p.Entries() {
		if c.Key() != want[i] {
			t.Errorf("entry %d: Expected %s, got %s", i, want[i], c.Key())
		}
	}
}

func TestMustStartFitsSingleByte(t *testing.T) {
	p := looseP()
	for i := 0; i < 300; i++ {
		p.Add(NewUtf8(fmt.Sprintf("a%03d", i), DomainNormalUTF8))
	}
	target := NewString("zzz")
	p.Add(target)
	p.MarkMustStart(target)
	mustResolve(t, p)

	if idx := p.IndexOf(target); idx < 1 || idx > jvmgen.MaxSingleByteRef {
		t.Errorf("Expected must-start entry index <= 255, got %d", idx)
	}
	if idx := p.IndexOf(target); idx != 1 {
		t.Errorf("Expected must-start entry first, got %d", idx)
	}
	// 其余条目保持阶段 1 的顺序
	if idx := p.IndexOf(NewUtf8("a000", DomainNormalUTF8)); idx != 2 {
		t.Errorf("Expected a000 at 2, got %d", idx)
	}
}

func TestMustStartKeepsMarkOrder(t *testing.T) {
	p := looseP()
	c := NewClass("c/C")
	a := NewInteger(1)
	s := NewString("s")
	for _, e := range []Constant{a, s, c} {
		p.Add(e)
	}
	p.MarkMustStart(c)
	p.MarkMustStart(a)
	p.MarkMustStart(c)
	p.MarkMustStart(s)
	mustResolve(t, p)

	for i, e := range []Constant{c, a, s} {
		if got := p.IndexOf(e); got != i+1 {
			t.Errorf("Expected %s at %d, got %d", e, i+1, got)
		}
	}
	if len(p.MustStart()) != 3 {
		t.Errorf("Expected 3 must-start entries, got %d", len(p.MustStart()))
	}
}

func TestTooManyMustStart(t *testing.T) {
	p := looseP()
	for i := 0; i < 256; i++ {
		p.MarkMustStart(NewInteger(int32(i)))
	}
	err := p.Resolve()
	if perrors.CodeOf(err) != perrors.P0006 {
		t.Fatalf("Expected P0006, got %v", err)
	}
	if perrors.IsFatal(err) {
		t.Errorf("Expected malformed-input error, not fatal")
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	p := looseP()
	p.Add(Method("java/lang/Object", "<init>", "()V"))
	p.Add(Field("T", "count", "J"))
	p.Add(NewLong(42))
	ldc := p.Add(NewString("hello")).(Constant)
	p.MarkMustStart(ldc)
	mustResolve(t, p)

	first := encodePool(t, p)
	indices := make(map[string]int)
	for _, c := range p.Entries() {
		indices[c.Key()] = p.IndexOf(c)
	}

	mustResolve(t, p)
	second := encodePool(t, p)
	if !bytes.Equal(first, second) {
		t.Errorf("Expected identical encoding after second Resolve")
	}
	for _, c := range p.Entries() {
		if indices[c.Key()] != p.IndexOf(c) {
			t.Errorf("%s moved from %d to %d", c, indices[c.Key()], p.IndexOf(c))
		}
	}
}

func TestReResolveAddingEntriesIsInvariant(t *testing.T) {
	p := looseP()
	p.Add(&lateEntry{})
	err := p.Resolve()
	if perrors.CodeOf(err) != perrors.P0101 {
		t.Fatalf("Expected P0101, got %v", err)
	}
	ae, _ := perrors.As(err)
	if ae.StackTrace() == nil {
		t.Errorf("Expected invariant error to carry a stack trace")
	}
}

func TestAddAfterResolveReopens(t *testing.T) {
	p := looseP()
	p.Add(NewUtf8("a", DomainNormalUTF8))
	mustResolve(t, p)
	p.Add(NewUtf8("b", DomainNormalUTF8))

	if p.Resolved() {
		t.Fatalf("Expected pool to leave the resolved state")
	}
	mustResolve(t, p)
	if p.SlotCount() != 2 {
		t.Errorf("Expected 2 slots, got %d", p.SlotCount())
	}
}

// ============================================================================
// 查询
// ============================================================================

func TestIndexOfBeforeResolve(t *testing.T) {
	p := looseP()
	c := p.Add(NewClass("A"))
	expectPanicCode(t, perrors.P0100, func() { p.IndexOf(c) })
}

func TestIndexOfAbsent(t *testing.T) {
	p := looseP()
	p.Add(NewUtf8("a", DomainNormalUTF8))
	mustResolve(t, p)
	if got := p.IndexOf(NewUtf8("b", DomainNormalUTF8)); got != -1 {
		t.Errorf("Expected -1 for absent entry, got %d", got)
	}
	if _, err := p.Require(NewUtf8("b", DomainNormalUTF8)); perrors.CodeOf(err) != perrors.P0003 {
		t.Errorf("Expected P0003, got %v", err)
	}
}

func TestGetOutOfRange(t *testing.T) {
	p := looseP()
	p.Add(NewUtf8("a", DomainNormalUTF8))
	mustResolve(t, p)
	expectPanicCode(t, perrors.P0002, func() { p.Get(0) })
	expectPanicCode(t, perrors.P0002, func() { p.Get(2) })
}

func TestEncodeUnresolvedEntry(t *testing.T) {
	c := NewClass("A")
	p := looseP()
	p.Add(c)
	expectPanicCode(t, perrors.P0104, func() { c.Encode(jvmgen.NewByteWriter(), p) })
}

// ============================================================================
// 往返与全局表
// ============================================================================

func TestGlobalTableOrdering(t *testing.T) {
	g := NewGlobalTable()
	g.Intern(Method("A", "m", "()V"))
	g.Intern(NewInteger(5))
	if n := g.Seal(); n != 7 {
		t.Fatalf("Expected 7 global entries, got %d", n)
	}

	want := []string{"I:5", "U:A", "U:m", "C:A", "U:()V", "N:1:m()V"}
	for i, key := range want {
		if got := g.IndexOf(key); got != i {
			t.Errorf("Expected %s at global %d, got %d", key, i, got)
		}
	}
	if g.IndexOf("U:missing") != NoGlobalIndex {
		t.Errorf("Expected NoGlobalIndex for unknown key")
	}
	expectPanicCode(t, perrors.P0100, func() { g.Intern(NewInteger(6)) })
}

func TestRoundTripThroughReader(t *testing.T) {
	g := NewGlobalTable()
	g.Intern(Method("A", "m", "()V"))
	g.Intern(NewLong(-1))
	g.Intern(NewString("héllo\x00"))
	g.Seal()

	p := New(WithGlobalTable(g))
	p.Add(NewString("héllo\x00"))
	p.Add(NewLong(-1))
	p.Add(Method("A", "m", "()V"))
	mustResolve(t, p)

	count, items, err := jvmgen.NewReader(encodePool(t, p)).ReadConstantPool()
	if err != nil {
		t.Fatalf("ReadConstantPool failed: %v", err)
	}
	if int(count) != p.SlotCount()+1 {
		t.Errorf("Expected count %d, got %d", p.SlotCount()+1, count)
	}
	entries := p.Entries()
	if len(items) != len(entries) {
		t.Fatalf("Expected %d items, got %d\n%s", len(entries), len(items), spew.Sdump(items))
	}
	for i, it := range items {
		c := entries[i]
		if it.Tag != c.Tag() || it.Index != p.IndexOf(c) {
			t.Errorf("item %d: Expected %s at #%d, got %s", i, c, p.IndexOf(c), it)
			continue
		}
		switch v := c.(type) {
		case *Utf8:
			if it.Text != v.Value() {
				t.Errorf("Expected text %q, got %q", v.Value(), it.Text)
			}
		case *Long:
			if int64(it.Bits) != v.Value() {
				t.Errorf("Expected long %d, got %d", v.Value(), int64(it.Bits))
			}
		case *String:
			if it.Ref1 != uint16(p.IndexOf(NewUtf8(v.Value(), DomainNormalUTF8))) {
				t.Errorf("String points at #%d", it.Ref1)
			}
		case *MemberRef:
			if it.Ref1 != uint16(p.IndexOf(v.Class())) || it.Ref2 != uint16(p.IndexOf(v.NameAndType())) {
				t.Errorf("Methodref points at #%d.#%d", it.Ref1, it.Ref2)
			}
		}
	}
}

func TestUtf8LengthLimit(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"ascii at limit", strings.Repeat("a", 65535), true},
		{"ascii over limit", strings.Repeat("a", 70000), false},
		{"two-byte chars", strings.Repeat("é", 40000), false},
		{"nul doubles", strings.Repeat("\x00", 32768), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := looseP()
			p.Add(NewUtf8(tt.value, DomainAttributeUTF8))
			err := p.Resolve()
			if !tt.ok {
				if perrors.CodeOf(err) != perrors.P0007 {
					t.Fatalf("Expected P0007, got %v", err)
				}
				if ae, _ := perrors.As(err); len(ae.Entry) > 100 {
					t.Errorf("Expected a shortened entry description, got %d bytes", len(ae.Entry))
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			_, items, err := jvmgen.NewReader(encodePool(t, p)).ReadConstantPool()
			if err != nil {
				t.Fatalf("ReadConstantPool failed: %v", err)
			}
			if len(items) != 1 || items[0].Text != tt.value {
				t.Errorf("Expected the long Utf8 to round trip")
			}
		})
	}
}

func TestConstantSharedBetweenPools(t *testing.T) {
	shared := Method("demo/Out", "print", "(Ljava/lang/String;)V")

	small := looseP()
	small.Add(shared)
	mustResolve(t, small)
	before := encodePool(t, small)

	// 更多条目排在前面，同一个常量在第二个池里得到不同的索引
	large := looseP()
	for i := 0; i < 20; i++ {
		large.Add(NewClass(fmt.Sprintf("a/A%02d", i)))
	}
	large.Add(shared)
	mustResolve(t, large)

	if small.IndexOf(shared) == large.IndexOf(shared) {
		t.Fatalf("Expected different layouts, both at #%d", small.IndexOf(shared))
	}
	if after := encodePool(t, small); !bytes.Equal(before, after) {
		t.Errorf("Resolving another pool changed this pool's encoding\nbefore: % x\nafter:  % x", before, after)
	}

	_, items, err := jvmgen.NewReader(encodePool(t, large)).ReadConstantPool()
	if err != nil {
		t.Fatalf("ReadConstantPool failed: %v", err)
	}
	for _, it := range items {
		if it.Tag == jvmgen.ConstantMethodref {
			if it.Ref1 != uint16(large.IndexOf(shared.Class())) || it.Ref2 != uint16(large.IndexOf(shared.NameAndType())) {
				t.Errorf("Methodref points at #%d.#%d", it.Ref1, it.Ref2)
			}
		}
	}
}

func TestGlobalTableLeavesInstancesUntouched(t *testing.T) {
	c := NewInteger(9)
	g := NewGlobalTable()
	g.Intern(c)
	g.Seal()

	if c.GlobalIndex() != NoGlobalIndex {
		t.Errorf("Expected Seal not to write into the instance, got %d", c.GlobalIndex())
	}

	p := New(WithGlobalTable(g))
	p.Add(c)
	mustResolve(t, p)
	if p.IndexOf(c) != 1 {
		t.Errorf("Expected Integer at #1, got %d", p.IndexOf(c))
	}
}

func TestTextOrderFollowsUTF16(t *testing.T) {
	p := looseP()
	// U+E000 排在 U+1F600 之前（按字节），但 UTF-16 中代理对 0xD83D 更小
	p.Add(NewUtf8("\uE000", DomainNormalUTF8))
	p.Add(NewUtf8("\U0001F600", DomainNormalUTF8))
	p.Add(NewClass("\uE000x"))
	p.Add(NewClass("\U0001F600x"))
	mustResolve(t, p)

	want := []string{"U:\U0001F600", "U:\U0001F600x", "U:\uE000", "U:\uE000x", "C:\U0001F600x", "C:\uE000x"}
	got := make([]string, 0, p.Size())
	for _, c := range p.Entries() {
		got = append(got, c.Key())
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
