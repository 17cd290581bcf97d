package classfile

import (
	"github.com/tangzhangming/pack200/internal/cpool"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// Member 字段或方法
type Member struct {
	AccessFlags uint16
	Attributes  []Attribute

	name       *cpool.Utf8
	descriptor *cpool.Utf8
	nameIndex  uint16
	descIndex  uint16
}

// NewField 创建字段
func NewField(flags uint16, name, descriptor string, attrs ...Attribute) *Member {
	return newMember(flags, name, descriptor, attrs)
}

// NewMethod 创建方法
func NewMethod(flags uint16, name, descriptor string, attrs ...Attribute) *Member {
	return newMember(flags, name, descriptor, attrs)
}

func newMember(flags uint16, name, descriptor string, attrs []Attribute) *Member {
	return &Member{
		AccessFlags: flags,
		Attributes:  attrs,
		name:        cpool.NewUtf8(name, cpool.DomainNormalUTF8),
		descriptor:  cpool.NewUtf8(descriptor, cpool.DomainSignatureUTF8),
	}
}

// Name 成员名
func (m *Member) Name() string { return m.name.Value() }

// Descriptor 成员描述符
func (m *Member) Descriptor() string { return m.descriptor.Value() }

// Code 返回方法的 Code 属性，没有时返回 nil
func (m *Member) Code() *Code {
	for _, attr := range m.Attributes {
		if code, ok := attr.(*Code); ok {
			return code
		}
	}
	return nil
}

func (m *Member) NestedEntries() []cpool.Entry {
	out := []cpool.Entry{m.name, m.descriptor}
	for _, attr := range m.Attributes {
		out = append(out, attr)
	}
	return out
}

func (m *Member) Resolve(p *cpool.Pool) error {
	var err error
	if m.nameIndex, err = p.Require(m.name); err != nil {
		return err
	}
	m.descIndex, err = p.Require(m.descriptor)
	return err
}

// Encode 写出 field_info / method_info
func (m *Member) Encode(w *jvmgen.ByteWriter) error {
	w.WriteU16(m.AccessFlags)
	w.WriteU16(m.nameIndex)
	w.WriteU16(m.descIndex)
	return writeAttributes(w, m.Attributes)
}

func writeAttributes(w *jvmgen.ByteWriter, attrs []Attribute) error {
	w.WriteU16(uint16(len(attrs)))
	for _, attr := range attrs {
		if err := attr.Encode(w); err != nil {
			return err
		}
	}
	return nil
}
