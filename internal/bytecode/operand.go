package bytecode

import (
	"github.com/tangzhangming/pack200/internal/cpool"
	perrors "github.com/tangzhangming/pack200/internal/errors"
)

// OperandSource 提供已解码的操作数
// 每次调用返回一个值并推进上游游标，调用顺序和次数由操作码决定，不能回读
type OperandSource interface {
	NextClassRef() (*cpool.Class, error)
	NextFieldRef() (*cpool.MemberRef, error)
	NextMethodRef() (*cpool.MemberRef, error)
	NextInterfaceMethodRef() (*cpool.MemberRef, error)
	// NextConstant ldc/ldc_w/ldc2_w 引用的常量
	NextConstant() (cpool.Constant, error)
	NextLocal() (int, error)
	NextByte() (int, error)
	NextShort() (int, error)
	// NextLabel 以指令条数表示的相对跳转目标
	NextLabel() (int, error)
	NextCaseCount() (int, error)
	NextCaseValue() (int32, error)
	NextWideOpcode() (int, error)
}

// ============================================================================
// Bands: 按类别排队的操作数源
// ============================================================================

// Bands 每类操作数一条队列，按队列顺序依次取出
type Bands struct {
	ClassRefs           []*cpool.Class
	FieldRefs           []*cpool.MemberRef
	MethodRefs          []*cpool.MemberRef
	InterfaceMethodRefs []*cpool.MemberRef
	Constants           []cpool.Constant
	Locals              []int
	Bytes               []int
	Shorts              []int
	Labels              []int
	CaseCounts          []int
	CaseValues          []int32
	WideOpcodes         []int

	pos [numBands]int
}

type band int

const (
	bandClassRef band = iota
	bandFieldRef
	bandMethodRef
	bandInterfaceMethodRef
	bandConstant
	bandLocal
	bandByte
	bandShort
	bandLabel
	bandCaseCount
	bandCaseValue
	bandWideOpcode
	numBands
)

var bandNames = [numBands]string{
	"bc_classref", "bc_fieldref", "bc_methodref", "bc_imethodref",
	"bc_constant", "bc_local", "bc_byte", "bc_short",
	"bc_label", "bc_case_count", "bc_case_value", "bc_escbyte",
}

func (b band) String() string { return bandNames[b] }

func next[T any](b *Bands, id band, queue []T) (T, error) {
	var zero T
	i := b.pos[id]
	if i >= len(queue) {
		return zero, perrors.Malformed(perrors.P0001, "band %s exhausted after %d values", id, len(queue))
	}
	b.pos[id] = i + 1
	return queue[i], nil
}

func (b *Bands) NextClassRef() (*cpool.Class, error) {
	return next(b, bandClassRef, b.ClassRefs)
}

func (b *Bands) NextFieldRef() (*cpool.MemberRef, error) {
	return next(b, bandFieldRef, b.FieldRefs)
}

func (b *Bands) NextMethodRef() (*cpool.MemberRef, error) {
	return next(b, bandMethodRef, b.MethodRefs)
}

func (b *Bands) NextInterfaceMethodRef() (*cpool.MemberRef, error) {
	return next(b, bandInterfaceMethodRef, b.InterfaceMethodRefs)
}

func (b *Bands) NextConstant() (cpool.Constant, error) {
	return next(b, bandConstant, b.Constants)
}

func (b *Bands) NextLocal() (int, error)       { return next(b, bandLocal, b.Locals) }
func (b *Bands) NextByte() (int, error)        { return next(b, bandByte, b.Bytes) }
func (b *Bands) NextShort() (int, error)       { return next(b, bandShort, b.Shorts) }
func (b *Bands) NextLabel() (int, error)       { return next(b, bandLabel, b.Labels) }
func (b *Bands) NextCaseCount() (int, error)   { return next(b, bandCaseCount, b.CaseCounts) }
func (b *Bands) NextCaseValue() (int32, error) { return next(b, bandCaseValue, b.CaseValues) }
func (b *Bands) NextWideOpcode() (int, error)  { return next(b, bandWideOpcode, b.WideOpcodes) }

// Remaining 返回各队列剩余的操作数个数，键为队列名，只列出非空队列
func (b *Bands) Remaining() map[string]int {
	lens := [numBands]int{
		len(b.ClassRefs), len(b.FieldRefs), len(b.MethodRefs), len(b.InterfaceMethodRefs),
		len(b.Constants), len(b.Locals), len(b.Bytes), len(b.Shorts),
		len(b.Labels), len(b.CaseCounts), len(b.CaseValues), len(b.WideOpcodes),
	}
	out := make(map[string]int)
	for id := band(0); id < numBands; id++ {
		if n := lens[id] - b.pos[id]; n > 0 {
			out[id.String()] = n
		}
	}
	return out
}
