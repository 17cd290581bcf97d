// Package classfile 组装完整的 class 文件：属性、字段与方法、注解，
// 以及把它们注册进常量池、解析并写出的流程。
package classfile

import (
	"github.com/tangzhangming/pack200/internal/cpool"
	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// Attribute class 文件属性
// 属性是常量池的辅助条目：不占槽位，但和常量一起解析
type Attribute interface {
	cpool.Entry
	Name() string
	// Encode 写出 attribute_name_index、attribute_length 和内容
	Encode(w *jvmgen.ByteWriter) error
}

// attrBase 属性名，位于属性域
type attrBase struct {
	name      *cpool.Utf8
	nameIndex uint16
}

func newAttrBase(name string) attrBase {
	return attrBase{name: cpool.NewUtf8(name, cpool.DomainAttributeUTF8)}
}

func (a *attrBase) Name() string { return a.name.Value() }

func (a *attrBase) resolveName(p *cpool.Pool) error {
	idx, err := p.Require(a.name)
	if err != nil {
		return err
	}
	a.nameIndex = idx
	return nil
}

// encodeAttribute 先写内容再补长度
func (a *attrBase) encodeAttribute(w *jvmgen.ByteWriter, body func(*jvmgen.ByteWriter) error) error {
	bw := jvmgen.NewByteWriter()
	if err := body(bw); err != nil {
		return err
	}
	w.WriteU16(a.nameIndex)
	w.WriteU32(uint32(bw.Len()))
	w.WriteBytes(bw.Bytes())
	return nil
}

// ============================================================================
// 单索引属性
// ============================================================================

// SourceFile 源文件名
type SourceFile struct {
	attrBase
	file      *cpool.Utf8
	fileIndex uint16
}

// NewSourceFile 创建 SourceFile 属性
func NewSourceFile(file string) *SourceFile {
	return &SourceFile{attrBase: newAttrBase(jvmgen.AttrSourceFile), file: cpool.NewUtf8(file, cpool.DomainNormalUTF8)}
}

func (a *SourceFile) NestedEntries() []cpool.Entry {
	return []cpool.Entry{a.name, a.file}
}

func (a *SourceFile) Resolve(p *cpool.Pool) error {
	if err := a.resolveName(p); err != nil {
		return err
	}
	var err error
	a.fileIndex, err = p.Require(a.file)
	return err
}

func (a *SourceFile) Encode(w *jvmgen.ByteWriter) error {
	return a.encodeAttribute(w, func(b *jvmgen.ByteWriter) error {
		b.WriteU16(a.fileIndex)
		return nil
	})
}

// Signature 泛型签名
type Signature struct {
	attrBase
	signature *cpool.Utf8
	sigIndex  uint16
}

// NewSignature 创建 Signature 属性
func NewSignature(signature string) *Signature {
	return &Signature{attrBase: newAttrBase(jvmgen.AttrSignature), signature: cpool.NewUtf8(signature, cpool.DomainSignatureUTF8)}
}

func (a *Signature) NestedEntries() []cpool.Entry {
	return []cpool.Entry{a.name, a.signature}
}

func (a *Signature) Resolve(p *cpool.Pool) error {
	if err := a.resolveName(p); err != nil {
		return err
	}
	var err error
	a.sigIndex, err = p.Require(a.signature)
	return err
}

func (a *Signature) Encode(w *jvmgen.ByteWriter) error {
	return a.encodeAttribute(w, func(b *jvmgen.ByteWriter) error {
		b.WriteU16(a.sigIndex)
		return nil
	})
}

// ConstantValue 字段常量值
type ConstantValue struct {
	attrBase
	value      cpool.Constant
	valueIndex uint16
}

// NewConstantValue 创建 ConstantValue 属性
// 只接受 Integer/Float/Long/Double/String
func NewConstantValue(value cpool.Constant) *ConstantValue {
	return &ConstantValue{attrBase: newAttrBase(jvmgen.AttrConstantValue), value: value}
}

func (a *ConstantValue) NestedEntries() []cpool.Entry {
	return []cpool.Entry{a.name, a.value}
}

func (a *ConstantValue) Resolve(p *cpool.Pool) error {
	switch a.value.Tag() {
	case jvmgen.ConstantInteger, jvmgen.ConstantFloat, jvmgen.ConstantLong,
		jvmgen.ConstantDouble, jvmgen.ConstantString:
	default:
		return perrors.Malformed(perrors.P0005, "ConstantValue cannot hold %s", jvmgen.TagName(a.value.Tag())).
			WithEntry(a.value.String())
	}
	if err := a.resolveName(p); err != nil {
		return err
	}
	var err error
	a.valueIndex, err = p.Require(a.value)
	return err
}

func (a *ConstantValue) Encode(w *jvmgen.ByteWriter) error {
	return a.encodeAttribute(w, func(b *jvmgen.ByteWriter) error {
		b.WriteU16(a.valueIndex)
		return nil
	})
}

// ============================================================================
// 无内容属性
// ============================================================================

// Marker Deprecated / Synthetic
type Marker struct {
	attrBase
}

// NewDeprecated 创建 Deprecated 属性
func NewDeprecated() *Marker {
	return &Marker{attrBase: newAttrBase(jvmgen.AttrDeprecated)}
}

// NewSynthetic 创建 Synthetic 属性
func NewSynthetic() *Marker {
	return &Marker{attrBase: newAttrBase(jvmgen.AttrSynthetic)}
}

func (a *Marker) NestedEntries() []cpool.Entry { return []cpool.Entry{a.name} }
func (a *Marker) Resolve(p *cpool.Pool) error  { return a.resolveName(p) }

func (a *Marker) Encode(w *jvmgen.ByteWriter) error {
	return a.encodeAttribute(w, func(*jvmgen.ByteWriter) error { return nil })
}

// ============================================================================
// Exceptions
// ============================================================================

// Exceptions 方法声明抛出的异常
type Exceptions struct {
	attrBase
	classes []*cpool.Class
	indices []uint16
}

// NewExceptions 创建 Exceptions 属性，参数为异常类的内部名称
func NewExceptions(classes ...string) *Exceptions {
	a := &Exceptions{attrBase: newAttrBase(jvmgen.AttrExceptions)}
	for _, c := range classes {
		a.classes = append(a.classes, cpool.NewClass(c))
	}
	return a
}

func (a *Exceptions) NestedEntries() []cpool.Entry {
	out := []cpool.Entry{a.name}
	for _, c := range a.classes {
		out = append(out, c)
	}
	return out
}

func (a *Exceptions) Resolve(p *cpool.Pool) error {
	if err := a.resolveName(p); err != nil {
		return err
	}
	a.indices = a.indices[:0]
	for _, c := range a.classes {
		idx, err := p.Require(c)
		if err != nil {
			return err
		}
		a.indices = append(a.indices, idx)
	}
	return nil
}

func (a *Exceptions) Encode(w *jvmgen.ByteWriter) error {
	return a.encodeAttribute(w, func(b *jvmgen.ByteWriter) error {
		b.WriteU16(uint16(len(a.indices)))
		for _, idx := range a.indices {
			b.WriteU16(idx)
		}
		return nil
	})
}
