package jvmgen

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// PoolItem 读取到的常量池条目
type PoolItem struct {
	Index int    // 1-based 常量池索引
	Tag   uint8  // 常量标签
	Text  string // Utf8 文本
	Bits  uint64 // Integer/Float/Long/Double 的原始位
	Ref1  uint16 // 第一个引用索引
	Ref2  uint16 // 第二个引用索引 (NameAndType/成员引用)
}

// String 返回条目的可读形式
func (it PoolItem) String() string {
	switch it.Tag {
	case ConstantUtf8:
		return fmt.Sprintf("#%d = Utf8 %s", it.Index, strconv.Quote(it.Text))
	case ConstantInteger:
		return fmt.Sprintf("#%d = Integer %d", it.Index, int32(it.Bits))
	case ConstantFloat:
		return fmt.Sprintf("#%d = Float %g", it.Index, math.Float32frombits(uint32(it.Bits)))
	case ConstantLong:
		return fmt.Sprintf("#%d = Long %d", it.Index, int64(it.Bits))
	case ConstantDouble:
		return fmt.Sprintf("#%d = Double %g", it.Index, math.Float64frombits(it.Bits))
	case ConstantClass, ConstantString:
		return fmt.Sprintf("#%d = %s #%d", it.Index, TagName(it.Tag), it.Ref1)
	default:
		return fmt.Sprintf("#%d = %s #%d.#%d", it.Index, TagName(it.Tag), it.Ref1, it.Ref2)
	}
}

// AttributeInfo 属性信息
type AttributeInfo struct {
	NameIndex uint16
	Info      []byte
}

// MemberInfo 字段或方法信息
type MemberInfo struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []AttributeInfo
}

// Class 读取到的 class 文件
type Class struct {
	MinorVersion uint16
	MajorVersion uint16
	PoolCount    uint16 // constant_pool_count (槽位数 + 1)
	Pool         []PoolItem
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []MemberInfo
	Methods      []MemberInfo
	Attributes   []AttributeInfo
}

// Item 按索引查找常量池条目
func (c *Class) Item(index uint16) (PoolItem, bool) {
	for _, it := range c.Pool {
		if it.Index == int(index) {
			return it, true
		}
	}
	return PoolItem{}, false
}

// Utf8 返回索引处的 Utf8 文本，不是 Utf8 时返回空串
func (c *Class) Utf8(index uint16) string {
	it, ok := c.Item(index)
	if !ok || it.Tag != ConstantUtf8 {
		return ""
	}
	return it.Text
}

// ClassName 返回 Class 条目引用的类名
func (c *Class) ClassName(index uint16) string {
	it, ok := c.Item(index)
	if !ok || it.Tag != ConstantClass {
		return ""
	}
	return c.Utf8(it.Ref1)
}

// FindAttribute 在属性表中按名称查找
func (c *Class) FindAttribute(attrs []AttributeInfo, name string) (AttributeInfo, bool) {
	for _, a := range attrs {
		if c.Utf8(a.NameIndex) == name {
			return a, true
		}
	}
	return AttributeInfo{}, false
}

// FormatError class 文件格式错误
type FormatError struct {
	Offset  int
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("class file format error at offset %d: %s", e.Offset, e.Message)
}

// Reader class 文件读取器
type Reader struct {
	data []byte
	pos  int
}

// NewReader 创建读取器
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadClass 解析完整的 class 文件
func ReadClass(data []byte) (*Class, error) {
	return NewReader(data).ReadClass()
}

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.data) {
		return &FormatError{Offset: r.pos, Message: fmt.Sprintf("need %d bytes, have %d", n, len(r.data)-r.pos)}
	}
	return nil
}

func (r *Reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadClass 从当前位置解析 class 文件
func (r *Reader) ReadClass() (*Class, error) {
	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != ClassFileMagic {
		return nil, &FormatError{Offset: 0, Message: fmt.Sprintf("bad magic 0x%08x", magic)}
	}

	c := &Class{}
	if c.MinorVersion, err = r.u16(); err != nil {
		return nil, err
	}
	if c.MajorVersion, err = r.u16(); err != nil {
		return nil, err
	}
	if c.PoolCount, c.Pool, err = r.ReadConstantPool(); err != nil {
		return nil, err
	}
	if c.AccessFlags, err = r.u16(); err != nil {
		return nil, err
	}
	if c.ThisClass, err = r.u16(); err != nil {
		return nil, err
	}
	if c.SuperClass, err = r.u16(); err != nil {
		return nil, err
	}

	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	c.Interfaces = make([]uint16, n)
	for i := range c.Interfaces {
		if c.Interfaces[i], err = r.u16(); err != nil {
			return nil, err
		}
	}

	if c.Fields, err = r.readMembers(); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	if c.Methods, err = r.readMembers(); err != nil {
		return nil, fmt.Errorf("methods: %w", err)
	}
	if c.Attributes, err = r.readAttributes(); err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}
	if r.pos != len(r.data) {
		return nil, &FormatError{Offset: r.pos, Message: fmt.Sprintf("%d trailing bytes", len(r.data)-r.pos)}
	}
	return c, nil
}

// ReadConstantPool 读取常量池 (count 之后是各条目，Long/Double 占两个槽位)
func (r *Reader) ReadConstantPool() (uint16, []PoolItem, error) {
	count, err := r.u16()
	if err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, &FormatError{Offset: r.pos - 2, Message: "constant_pool_count is 0"}
	}

	items := make([]PoolItem, 0, count)
	for index := 1; index < int(count); index++ {
		start := r.pos
		tag, err := r.u8()
		if err != nil {
			return 0, nil, err
		}
		it := PoolItem{Index: index, Tag: tag}
		switch tag {
		case ConstantUtf8:
			n, err := r.u16()
			if err != nil {
				return 0, nil, err
			}
			raw, err := r.bytes(int(n))
			if err != nil {
				return 0, nil, err
			}
			if it.Text, err = DecodeModifiedUTF8(raw); err != nil {
				return 0, nil, &FormatError{Offset: start, Message: err.Error()}
			}
		case ConstantInteger, ConstantFloat:
			v, err := r.u32()
			if err != nil {
				return 0, nil, err
			}
			it.Bits = uint64(v)
		case ConstantLong, ConstantDouble:
			hi, err := r.u32()
			if err != nil {
				return 0, nil, err
			}
			lo, err := r.u32()
			if err != nil {
				return 0, nil, err
			}
			it.Bits = uint64(hi)<<32 | uint64(lo)
			index++ // 占用两个槽位
		case ConstantClass, ConstantString:
			if it.Ref1, err = r.u16(); err != nil {
				return 0, nil, err
			}
		case ConstantFieldref, ConstantMethodref, ConstantInterfaceMethodref, ConstantNameAndType:
			if it.Ref1, err = r.u16(); err != nil {
				return 0, nil, err
			}
			if it.Ref2, err = r.u16(); err != nil {
				return 0, nil, err
			}
		default:
			return 0, nil, &FormatError{Offset: start, Message: fmt.Sprintf("unknown constant tag %d", tag)}
		}
		items = append(items, it)
	}
	return count, items, nil
}

func (r *Reader) readMembers() ([]MemberInfo, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	members := make([]MemberInfo, n)
	for i := range members {
		m := &members[i]
		if m.AccessFlags, err = r.u16(); err != nil {
			return nil, err
		}
		if m.NameIndex, err = r.u16(); err != nil {
			return nil, err
		}
		if m.DescriptorIndex, err = r.u16(); err != nil {
			return nil, err
		}
		if m.Attributes, err = r.readAttributes(); err != nil {
			return nil, err
		}
	}
	return members, nil
}

func (r *Reader) readAttributes() ([]AttributeInfo, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	attrs := make([]AttributeInfo, n)
	for i := range attrs {
		if attrs[i].NameIndex, err = r.u16(); err != nil {
			return nil, err
		}
		length, err := r.u32()
		if err != nil {
			return nil, err
		}
		if attrs[i].Info, err = r.bytes(int(length)); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

// ExceptionEntry Code 属性中的异常表项
type ExceptionEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// CodeInfo 解析后的 Code 属性
type CodeInfo struct {
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte
	Exceptions []ExceptionEntry
	Attributes []AttributeInfo
}

// ReadCode 解析 Code 属性体
func ReadCode(info []byte) (*CodeInfo, error) {
	r := NewReader(info)
	ci := &CodeInfo{}
	var err error
	if ci.MaxStack, err = r.u16(); err != nil {
		return nil, err
	}
	if ci.MaxLocals, err = r.u16(); err != nil {
		return nil, err
	}
	length, err := r.u32()
	if err != nil {
		return nil, err
	}
	if ci.Code, err = r.bytes(int(length)); err != nil {
		return nil, err
	}
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	ci.Exceptions = make([]ExceptionEntry, n)
	for i := range ci.Exceptions {
		e := &ci.Exceptions[i]
		for _, p := range []*uint16{&e.StartPC, &e.EndPC, &e.HandlerPC, &e.CatchType} {
			if *p, err = r.u16(); err != nil {
				return nil, err
			}
		}
	}
	if ci.Attributes, err = r.readAttributes(); err != nil {
		return nil, err
	}
	return ci, nil
}
