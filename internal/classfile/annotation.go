package classfile

import (
	"github.com/tangzhangming/pack200/internal/cpool"
	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// ============================================================================
// 元素值
// ============================================================================

// ElementValue 注解元素值
// 标签: B C D F I J S Z s e c @ [
type ElementValue struct {
	Tag byte

	constant   cpool.Constant // 基本类型、字符串
	typeName   *cpool.Utf8    // e: 枚举类型描述符
	constName  *cpool.Utf8    // e: 枚举常量名
	classInfo  *cpool.Utf8    // c: 返回类型描述符
	annotation *Annotation    // @
	values     []*ElementValue

	index1 uint16
	index2 uint16
}

// IntValue B C I S Z 元素值
func IntValue(tag byte, v int32) *ElementValue {
	return &ElementValue{Tag: tag, constant: cpool.NewInteger(v)}
}

// LongValue J 元素值
func LongValue(v int64) *ElementValue {
	return &ElementValue{Tag: 'J', constant: cpool.NewLong(v)}
}

// FloatValue F 元素值
func FloatValue(v float32) *ElementValue {
	return &ElementValue{Tag: 'F', constant: cpool.NewFloat(v)}
}

// DoubleValue D 元素值
func DoubleValue(v float64) *ElementValue {
	return &ElementValue{Tag: 'D', constant: cpool.NewDouble(v)}
}

// StringValue s 元素值，内容为 UTF8 而不是 String 常量
func StringValue(s string) *ElementValue {
	return &ElementValue{Tag: 's', constant: cpool.NewUtf8(s, cpool.DomainNormalUTF8)}
}

// EnumValue e 元素值
func EnumValue(typeDescriptor, constName string) *ElementValue {
	return &ElementValue{
		Tag:       'e',
		typeName:  cpool.NewUtf8(typeDescriptor, cpool.DomainSignatureUTF8),
		constName: cpool.NewUtf8(constName, cpool.DomainNormalUTF8),
	}
}

// ClassValue c 元素值
func ClassValue(descriptor string) *ElementValue {
	return &ElementValue{Tag: 'c', classInfo: cpool.NewUtf8(descriptor, cpool.DomainSignatureUTF8)}
}

// AnnotationValue @ 元素值
func AnnotationValue(a *Annotation) *ElementValue {
	return &ElementValue{Tag: '@', annotation: a}
}

// ArrayValue [ 元素值
func ArrayValue(values ...*ElementValue) *ElementValue {
	return &ElementValue{Tag: '[', values: values}
}

// NestedEntries 直接依赖的条目，更深的嵌套由常量池的不动点展开
func (v *ElementValue) NestedEntries() []cpool.Entry {
	switch v.Tag {
	case 'e':
		return []cpool.Entry{v.typeName, v.constName}
	case 'c':
		return []cpool.Entry{v.classInfo}
	case '@':
		if v.annotation == nil {
			return nil
		}
		return []cpool.Entry{v.annotation}
	case '[':
		out := make([]cpool.Entry, 0, len(v.values))
		for _, e := range v.values {
			if e != nil {
				out = append(out, e)
			}
		}
		return out
	default:
		if v.constant == nil {
			return nil
		}
		return []cpool.Entry{v.constant}
	}
}

func (v *ElementValue) Resolve(p *cpool.Pool) error {
	var err error
	switch v.Tag {
	case 'B', 'C', 'I', 'S', 'Z':
		err = v.requireConstant(p, jvmgen.ConstantInteger)
	case 'J':
		err = v.requireConstant(p, jvmgen.ConstantLong)
	case 'F':
		err = v.requireConstant(p, jvmgen.ConstantFloat)
	case 'D':
		err = v.requireConstant(p, jvmgen.ConstantDouble)
	case 's':
		err = v.requireConstant(p, jvmgen.ConstantUtf8)
	case 'e':
		if v.index1, err = p.Require(v.typeName); err == nil {
			v.index2, err = p.Require(v.constName)
		}
	case 'c':
		v.index1, err = p.Require(v.classInfo)
	case '@':
		if v.annotation == nil {
			err = perrors.Malformed(perrors.P0005, "nested annotation missing")
		}
	case '[':
		if len(v.values) > 0xFFFF {
			err = perrors.Malformed(perrors.P0007, "%d array elements", len(v.values))
			break
		}
		for i, e := range v.values {
			if e == nil {
				err = perrors.Malformed(perrors.P0005, "array element %d has no value", i)
				break
			}
		}
	default:
		err = perrors.Malformed(perrors.P0005, "unknown element value tag %q", v.Tag)
	}
	return err
}

func (v *ElementValue) requireConstant(p *cpool.Pool, tag uint8) error {
	if v.constant == nil || v.constant.Tag() != tag {
		return perrors.Malformed(perrors.P0005, "element value %q needs a %s constant", v.Tag, jvmgen.TagName(tag))
	}
	var err error
	v.index1, err = p.Require(v.constant)
	return err
}

// Encode 写出 element_value
func (v *ElementValue) Encode(w *jvmgen.ByteWriter) {
	w.WriteU8(v.Tag)
	switch v.Tag {
	case 'e':
		w.WriteU16(v.index1)
		w.WriteU16(v.index2)
	case '@':
		v.annotation.Encode(w)
	case '[':
		w.WriteU16(uint16(len(v.values)))
		for _, e := range v.values {
			e.Encode(w)
		}
	default:
		w.WriteU16(v.index1)
	}
}

// ============================================================================
// 注解
// ============================================================================

// ElementPair 注解的 名称 = 值
type ElementPair struct {
	Name  string
	Value *ElementValue
}

// Annotation 一个注解
// 类型是字段描述符 (Ljava/lang/Deprecated;)，以 UTF8 形式引用
type Annotation struct {
	Type  *cpool.Utf8
	Pairs []ElementPair

	names       []*cpool.Utf8
	typeIndex   uint16
	nameIndices []uint16
}

// NewAnnotation 创建注解
func NewAnnotation(typeDescriptor string, pairs ...ElementPair) *Annotation {
	a := &Annotation{
		Type:  cpool.NewUtf8(typeDescriptor, cpool.DomainSignatureUTF8),
		Pairs: pairs,
	}
	for _, pair := range pairs {
		a.names = append(a.names, cpool.NewUtf8(pair.Name, cpool.DomainNormalUTF8))
	}
	return a
}

func (a *Annotation) NestedEntries() []cpool.Entry {
	out := []cpool.Entry{a.Type}
	for i, pair := range a.Pairs {
		out = append(out, a.names[i])
		// nil 值留给 Resolve 报错
		if pair.Value != nil {
			out = append(out, pair.Value)
		}
	}
	return out
}

func (a *Annotation) Resolve(p *cpool.Pool) error {
	if len(a.Pairs) > 0xFFFF {
		return perrors.Malformed(perrors.P0007, "%d element pairs", len(a.Pairs))
	}
	for _, pair := range a.Pairs {
		if pair.Value == nil {
			return perrors.Malformed(perrors.P0005, "element %q has no value", pair.Name).
				WithEntry(a.Type.Value())
		}
	}
	var err error
	if a.typeIndex, err = p.Require(a.Type); err != nil {
		return err
	}
	a.nameIndices = a.nameIndices[:0]
	for _, name := range a.names {
		idx, err := p.Require(name)
		if err != nil {
			return err
		}
		a.nameIndices = append(a.nameIndices, idx)
	}
	return nil
}

// Encode 写出 annotation 结构
func (a *Annotation) Encode(w *jvmgen.ByteWriter) {
	w.WriteU16(a.typeIndex)
	w.WriteU16(uint16(len(a.Pairs)))
	for i, pair := range a.Pairs {
		w.WriteU16(a.nameIndices[i])
		pair.Value.Encode(w)
	}
}

// ============================================================================
// 注解属性
// ============================================================================

// Annotations RuntimeVisibleAnnotations / RuntimeInvisibleAnnotations
type Annotations struct {
	attrBase
	Annotations []*Annotation
}

// NewRuntimeVisibleAnnotations 创建运行时可见注解属性
func NewRuntimeVisibleAnnotations(anns ...*Annotation) *Annotations {
	return &Annotations{attrBase: newAttrBase(jvmgen.AttrRuntimeVisibleAnnotations), Annotations: anns}
}

// NewRuntimeInvisibleAnnotations 创建运行时不可见注解属性
func NewRuntimeInvisibleAnnotations(anns ...*Annotation) *Annotations {
	return &Annotations{attrBase: newAttrBase(jvmgen.AttrRuntimeInvisibleAnnotations), Annotations: anns}
}

func (a *Annotations) NestedEntries() []cpool.Entry {
	out := []cpool.Entry{a.name}
	for _, ann := range a.Annotations {
		out = append(out, ann)
	}
	return out
}

func (a *Annotations) Resolve(p *cpool.Pool) error { return a.resolveName(p) }

func (a *Annotations) Encode(w *jvmgen.ByteWriter) error {
	return a.encodeAttribute(w, func(b *jvmgen.ByteWriter) error {
		b.WriteU16(uint16(len(a.Annotations)))
		for _, ann := range a.Annotations {
			ann.Encode(b)
		}
		return nil
	})
}

// ParameterAnnotations RuntimeVisibleParameterAnnotations / RuntimeInvisibleParameterAnnotations
type ParameterAnnotations struct {
	attrBase
	Parameters [][]*Annotation
}

// NewRuntimeVisibleParameterAnnotations 创建运行时可见参数注解属性
func NewRuntimeVisibleParameterAnnotations(params ...[]*Annotation) *ParameterAnnotations {
	return &ParameterAnnotations{attrBase: newAttrBase(jvmgen.AttrRuntimeVisibleParameterAnnotations), Parameters: params}
}

// NewRuntimeInvisibleParameterAnnotations 创建运行时不可见参数注解属性
func NewRuntimeInvisibleParameterAnnotations(params ...[]*Annotation) *ParameterAnnotations {
	return &ParameterAnnotations{attrBase: newAttrBase(jvmgen.AttrRuntimeInvisibleParameterAnnotations), Parameters: params}
}

func (a *ParameterAnnotations) NestedEntries() []cpool.Entry {
	out := []cpool.Entry{a.name}
	for _, param := range a.Parameters {
		for _, ann := range param {
			out = append(out, ann)
		}
	}
	return out
}

func (a *ParameterAnnotations) Resolve(p *cpool.Pool) error {
	if len(a.Parameters) > 0xFF {
		return perrors.Malformed(perrors.P0007, "%d annotated parameters", len(a.Parameters))
	}
	return a.resolveName(p)
}

func (a *ParameterAnnotations) Encode(w *jvmgen.ByteWriter) error {
	return a.encodeAttribute(w, func(b *jvmgen.ByteWriter) error {
		b.WriteU8(uint8(len(a.Parameters)))
		for _, param := range a.Parameters {
			b.WriteU16(uint16(len(param)))
			for _, ann := range param {
				ann.Encode(b)
			}
		}
		return nil
	})
}

// AnnotationDefault 注解方法的默认值
type AnnotationDefault struct {
	attrBase
	Value *ElementValue
}

// NewAnnotationDefault 创建 AnnotationDefault 属性
func NewAnnotationDefault(v *ElementValue) *AnnotationDefault {
	return &AnnotationDefault{attrBase: newAttrBase(jvmgen.AttrAnnotationDefault), Value: v}
}

func (a *AnnotationDefault) NestedEntries() []cpool.Entry {
	return []cpool.Entry{a.name, a.Value}
}

func (a *AnnotationDefault) Resolve(p *cpool.Pool) error { return a.resolveName(p) }

func (a *AnnotationDefault) Encode(w *jvmgen.ByteWriter) error {
	return a.encodeAttribute(w, func(b *jvmgen.ByteWriter) error {
		a.Value.Encode(b)
		return nil
	})
}
