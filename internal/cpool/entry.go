package cpool

import (
	"fmt"
	"math"
	"strconv"

	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// NoGlobalIndex 表示条目不在全局表中（仅由字节码操作数合成）
const NoGlobalIndex = -1

// Entry class 文件中参与常量池解析的条目
// 非常量池条目（属性、成员、注解等）必须是指针类型，按身份去重
type Entry interface {
	// NestedEntries 返回该条目依赖的其他条目
	NestedEntries() []Entry
	// Resolve 从常量池中取得所依赖条目的索引
	Resolve(p *Pool) error
}

// Constant 占用常量池槽位的条目，按 Key 去重
type Constant interface {
	Entry
	Tag() uint8
	Domain() Domain
	GlobalIndex() int
	// Width 占用的槽位数，Long/Double 为 2
	Width() int
	// Key 结构化身份，不包含 globalIndex 与 domain
	Key() string
	// Encode 写出标签与定长内容，引用的索引取自已解析的常量池
	// 常量本身不保存索引，同一实例可以出现在多个常量池中
	Encode(w *jvmgen.ByteWriter, p *Pool)
	String() string
}

// Pinner 由含有单字节常量池操作数的条目实现
// 返回的条目在排序时必须位于常量池开头
type Pinner interface {
	PinnedEntries() []Entry
}

// base 条目的公共字段
type base struct {
	globalIndex int
	domain      Domain
}

func newBase(domain Domain) base {
	return base{globalIndex: NoGlobalIndex, domain: domain}
}

// GlobalIndex 返回全局表位置，没有时为 NoGlobalIndex
func (b *base) GlobalIndex() int { return b.globalIndex }

// SetGlobalIndex 设置全局表位置，只应在加入常量池之前调用
func (b *base) SetGlobalIndex(i int) { b.globalIndex = i }

// Domain 返回排序域
func (b *base) Domain() Domain { return b.domain }

// Width 默认占用一个槽位
func (b *base) Width() int { return 1 }

// ============================================================================
// UTF8
// ============================================================================

// Utf8 UTF8 常量
type Utf8 struct {
	base
	value string
}

// NewUtf8 创建 UTF8 常量
func NewUtf8(value string, domain Domain) *Utf8 {
	return &Utf8{base: newBase(domain), value: value}
}

func (u *Utf8) Tag() uint8             { return jvmgen.ConstantUtf8 }
func (u *Utf8) Key() string            { return "U:" + u.value }
func (u *Utf8) Value() string          { return u.value }
func (u *Utf8) String() string         { return "Utf8 " + strconv.Quote(u.value) }
func (u *Utf8) NestedEntries() []Entry { return nil }

// Resolve 检查编码后的长度能否放进 u2 长度字段
func (u *Utf8) Resolve(p *Pool) error {
	if n := len(jvmgen.EncodeModifiedUTF8(u.value)); n > jvmgen.MaxUtf8Length {
		return perrors.Malformed(perrors.P0007, "Utf8 needs %d bytes, limit is %d", n, jvmgen.MaxUtf8Length).
			WithEntry(u.brief())
	}
	return nil
}

// brief 过长文本只保留开头
func (u *Utf8) brief() string {
	if len(u.value) <= 40 {
		return u.String()
	}
	return fmt.Sprintf("Utf8 %q... (%d bytes)", u.value[:40], len(u.value))
}

// Encode 写出 modified UTF-8
func (u *Utf8) Encode(w *jvmgen.ByteWriter, p *Pool) {
	raw := jvmgen.EncodeModifiedUTF8(u.value)
	w.WriteU8(jvmgen.ConstantUtf8)
	w.WriteU16(uint16(len(raw)))
	w.WriteBytes(raw)
}

// ============================================================================
// 数值常量
// ============================================================================

// Integer int 常量
type Integer struct {
	base
	value int32
}

// NewInteger 创建 int 常量
func NewInteger(v int32) *Integer {
	return &Integer{base: newBase(DomainInteger), value: v}
}

func (c *Integer) Tag() uint8             { return jvmgen.ConstantInteger }
func (c *Integer) Key() string            { return "I:" + strconv.FormatInt(int64(c.value), 10) }
func (c *Integer) Value() int32           { return c.value }
func (c *Integer) String() string         { return fmt.Sprintf("Integer %d", c.value) }
func (c *Integer) NestedEntries() []Entry { return nil }
func (c *Integer) Resolve(p *Pool) error  { return nil }

func (c *Integer) Encode(w *jvmgen.ByteWriter, p *Pool) {
	w.WriteU8(jvmgen.ConstantInteger)
	w.WriteI32(c.value)
}

// Float float 常量，按位模式比较
type Float struct {
	base
	bits uint32
}

// NewFloat 创建 float 常量
func NewFloat(v float32) *Float {
	return NewFloatBits(math.Float32bits(v))
}

// NewFloatBits 按原始位创建 float 常量
func NewFloatBits(bits uint32) *Float {
	return &Float{base: newBase(DomainFloat), bits: bits}
}

func (c *Float) Tag() uint8             { return jvmgen.ConstantFloat }
func (c *Float) Key() string            { return "F:" + strconv.FormatUint(uint64(c.bits), 16) }
func (c *Float) Value() float32         { return math.Float32frombits(c.bits) }
func (c *Float) String() string         { return fmt.Sprintf("Float %g", c.Value()) }
func (c *Float) NestedEntries() []Entry { return nil }
func (c *Float) Resolve(p *Pool) error  { return nil }

func (c *Float) Encode(w *jvmgen.ByteWriter, p *Pool) {
	w.WriteU8(jvmgen.ConstantFloat)
	w.WriteU32(c.bits)
}

// Long long 常量，占两个槽位
type Long struct {
	base
	value int64
}

// NewLong 创建 long 常量
func NewLong(v int64) *Long {
	return &Long{base: newBase(DomainLong), value: v}
}

func (c *Long) Tag() uint8             { return jvmgen.ConstantLong }
func (c *Long) Width() int             { return 2 }
func (c *Long) Key() string            { return "J:" + strconv.FormatInt(c.value, 10) }
func (c *Long) Value() int64           { return c.value }
func (c *Long) String() string         { return fmt.Sprintf("Long %d", c.value) }
func (c *Long) NestedEntries() []Entry { return nil }
func (c *Long) Resolve(p *Pool) error  { return nil }

func (c *Long) Encode(w *jvmgen.ByteWriter, p *Pool) {
	w.WriteU8(jvmgen.ConstantLong)
	w.WriteU64(uint64(c.value))
}

// Double double 常量，占两个槽位，按位模式比较
type Double struct {
	base
	bits uint64
}

// NewDouble 创建 double 常量
func NewDouble(v float64) *Double {
	return NewDoubleBits(math.Float64bits(v))
}

// NewDoubleBits 按原始位创建 double 常量
func NewDoubleBits(bits uint64) *Double {
	return &Double{base: newBase(DomainDouble), bits: bits}
}

func (c *Double) Tag() uint8             { return jvmgen.ConstantDouble }
func (c *Double) Width() int             { return 2 }
func (c *Double) Key() string            { return "D:" + strconv.FormatUint(c.bits, 16) }
func (c *Double) Value() float64         { return math.Float64frombits(c.bits) }
func (c *Double) String() string         { return fmt.Sprintf("Double %g", c.Value()) }
func (c *Double) NestedEntries() []Entry { return nil }
func (c *Double) Resolve(p *Pool) error  { return nil }

func (c *Double) Encode(w *jvmgen.ByteWriter, p *Pool) {
	w.WriteU8(jvmgen.ConstantDouble)
	w.WriteU64(c.bits)
}
