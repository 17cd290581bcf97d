package cpool

import (
	"fmt"
	"strconv"

	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// ============================================================================
// String / Class
// ============================================================================

// String 字符串常量，引用一个 UTF8
type String struct {
	base
	value *Utf8
}

// NewString 创建字符串常量
func NewString(value string) *String {
	return &String{base: newBase(DomainString), value: NewUtf8(value, DomainNormalUTF8)}
}

func (c *String) Tag() uint8             { return jvmgen.ConstantString }
func (c *String) Key() string            { return "S:" + c.value.value }
func (c *String) Value() string          { return c.value.value }
func (c *String) String() string         { return "String " + strconv.Quote(c.value.value) }
func (c *String) NestedEntries() []Entry { return []Entry{c.value} }

// Resolve 检查 UTF8 已在池中
func (c *String) Resolve(p *Pool) error {
	_, err := p.Require(c.value)
	return err
}

func (c *String) Encode(w *jvmgen.ByteWriter, p *Pool) {
	w.WriteU8(jvmgen.ConstantString)
	w.WriteU16(p.ref(c, c.value))
}

// Class 类引用常量
type Class struct {
	base
	name *Utf8
}

// NewClass 创建类引用，name 为内部名称 (java/lang/Object)
func NewClass(name string) *Class {
	return &Class{base: newBase(DomainClassRef), name: NewUtf8(name, DomainNormalUTF8)}
}

func (c *Class) Tag() uint8             { return jvmgen.ConstantClass }
func (c *Class) Key() string            { return "C:" + c.name.value }
func (c *Class) Name() string           { return c.name.value }
func (c *Class) String() string         { return "Class " + c.name.value }
func (c *Class) NestedEntries() []Entry { return []Entry{c.name} }

// Resolve 检查类名 UTF8 已在池中
func (c *Class) Resolve(p *Pool) error {
	_, err := p.Require(c.name)
	return err
}

func (c *Class) Encode(w *jvmgen.ByteWriter, p *Pool) {
	w.WriteU8(jvmgen.ConstantClass)
	w.WriteU16(p.ref(c, c.name))
}

// ============================================================================
// NameAndType
// ============================================================================

// NameAndType 名称与类型描述符
// 身份由两段文本决定，而不是它们的索引
type NameAndType struct {
	base
	name       *Utf8
	descriptor *Utf8
}

// NewNameAndType 创建名称与类型
func NewNameAndType(name, descriptor string) *NameAndType {
	return &NameAndType{
		base:       newBase(DomainNameAndType),
		name:       NewUtf8(name, DomainNormalUTF8),
		descriptor: NewUtf8(descriptor, DomainSignatureUTF8),
	}
}

func (c *NameAndType) Tag() uint8         { return jvmgen.ConstantNameAndType }
func (c *NameAndType) Name() string       { return c.name.value }
func (c *NameAndType) Descriptor() string { return c.descriptor.value }

func (c *NameAndType) Key() string {
	return fmt.Sprintf("N:%d:%s%s", len(c.name.value), c.name.value, c.descriptor.value)
}

func (c *NameAndType) String() string {
	return "NameAndType " + c.name.value + ":" + c.descriptor.value
}

func (c *NameAndType) NestedEntries() []Entry {
	return []Entry{c.name, c.descriptor}
}

func (c *NameAndType) Resolve(p *Pool) error {
	if _, err := p.Require(c.name); err != nil {
		return err
	}
	_, err := p.Require(c.descriptor)
	return err
}

func (c *NameAndType) Encode(w *jvmgen.ByteWriter, p *Pool) {
	w.WriteU8(jvmgen.ConstantNameAndType)
	w.WriteU16(p.ref(c, c.name))
	w.WriteU16(p.ref(c, c.descriptor))
}

// ============================================================================
// 成员引用
// ============================================================================

// MemberRef Fieldref / Methodref / InterfaceMethodref
type MemberRef struct {
	base
	tag   uint8
	class *Class
	nat   *NameAndType
}

func newMemberRef(tag uint8, domain Domain, class *Class, nat *NameAndType) *MemberRef {
	return &MemberRef{base: newBase(domain), tag: tag, class: class, nat: nat}
}

// NewFieldref 创建字段引用
func NewFieldref(class *Class, nat *NameAndType) *MemberRef {
	return newMemberRef(jvmgen.ConstantFieldref, DomainField, class, nat)
}

// NewMethodref 创建方法引用
func NewMethodref(class *Class, nat *NameAndType) *MemberRef {
	return newMemberRef(jvmgen.ConstantMethodref, DomainMethod, class, nat)
}

// NewInterfaceMethodref 创建接口方法引用
func NewInterfaceMethodref(class *Class, nat *NameAndType) *MemberRef {
	return newMemberRef(jvmgen.ConstantInterfaceMethodref, DomainMethod, class, nat)
}

// Field 按文本创建字段引用
func Field(owner, name, descriptor string) *MemberRef {
	return NewFieldref(NewClass(owner), NewNameAndType(name, descriptor))
}

// Method 按文本创建方法引用
func Method(owner, name, descriptor string) *MemberRef {
	return NewMethodref(NewClass(owner), NewNameAndType(name, descriptor))
}

// InterfaceMethod 按文本创建接口方法引用
func InterfaceMethod(owner, name, descriptor string) *MemberRef {
	return NewInterfaceMethodref(NewClass(owner), NewNameAndType(name, descriptor))
}

func (c *MemberRef) Tag() uint8                { return c.tag }
func (c *MemberRef) Class() *Class             { return c.class }
func (c *MemberRef) NameAndType() *NameAndType { return c.nat }

func (c *MemberRef) Key() string {
	owner := c.class.name.value
	return fmt.Sprintf("M%d:%d:%s%s", c.tag, len(owner), owner, c.nat.Key())
}

func (c *MemberRef) String() string {
	return fmt.Sprintf("%s %s.%s:%s", jvmgen.TagName(c.tag), c.class.Name(), c.nat.Name(), c.nat.Descriptor())
}

func (c *MemberRef) NestedEntries() []Entry {
	return []Entry{c.class, c.nat}
}

func (c *MemberRef) Resolve(p *Pool) error {
	if _, err := p.Require(c.class); err != nil {
		return err
	}
	_, err := p.Require(c.nat)
	return err
}

func (c *MemberRef) Encode(w *jvmgen.ByteWriter, p *Pool) {
	w.WriteU8(c.tag)
	w.WriteU16(p.ref(c, c.class))
	w.WriteU16(p.ref(c, c.nat))
}
