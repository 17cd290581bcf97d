package classfile

import (
	"io"

	"github.com/tangzhangming/pack200/internal/cpool"
	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// ClassFile 一个待装配的 class 文件
// 常量池在 Assemble 时创建，归本次装配独占
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	AccessFlags  uint16
	This         *cpool.Class
	Super        *cpool.Class // java/lang/Object 为 nil
	Interfaces   []*cpool.Class
	Fields       []*Member
	Methods      []*Member
	Attributes   []Attribute

	// PoolOptions 创建常量池时使用的选项
	PoolOptions []cpool.Option

	pool *cpool.Pool
}

// NewClassFile 创建 class 文件，superName 为空表示没有父类
func NewClassFile(className, superName string) *ClassFile {
	cf := &ClassFile{
		MinorVersion: jvmgen.ClassMinorVersion,
		MajorVersion: jvmgen.ClassMajorVersion,
		AccessFlags:  jvmgen.AccPublic | jvmgen.AccSuper,
		This:         cpool.NewClass(className),
	}
	if superName != "" {
		cf.Super = cpool.NewClass(superName)
	}
	return cf
}

// Name 类的内部名称
func (cf *ClassFile) Name() string {
	return cf.This.Name()
}

// AddInterface 添加实现的接口
func (cf *ClassFile) AddInterface(name string) {
	cf.Interfaces = append(cf.Interfaces, cpool.NewClass(name))
}

// AddField 添加字段
func (cf *ClassFile) AddField(f *Member) {
	cf.Fields = append(cf.Fields, f)
}

// AddMethod 添加方法
func (cf *ClassFile) AddMethod(m *Member) {
	cf.Methods = append(cf.Methods, m)
}

// AddAttribute 添加类属性
func (cf *ClassFile) AddAttribute(a Attribute) {
	cf.Attributes = append(cf.Attributes, a)
}

// ConstantPool 返回最近一次 Assemble 使用的常量池
func (cf *ClassFile) ConstantPool() *cpool.Pool {
	return cf.pool
}

// Roots 返回直接属于本类的条目，其余条目经由嵌套关系发现
func (cf *ClassFile) Roots() []cpool.Entry {
	roots := []cpool.Entry{cf.This}
	if cf.Super != nil {
		roots = append(roots, cf.Super)
	}
	for _, iface := range cf.Interfaces {
		roots = append(roots, iface)
	}
	for _, f := range cf.Fields {
		roots = append(roots, f)
	}
	for _, m := range cf.Methods {
		roots = append(roots, m)
	}
	for _, a := range cf.Attributes {
		roots = append(roots, a)
	}
	return roots
}

// register 把所有条目加入常量池并展开嵌套条目
func (cf *ClassFile) register(p *cpool.Pool) {
	for _, e := range cf.Roots() {
		p.Add(e)
	}
	p.AddNestedEntries()
}

// Assemble 注册、解析常量池并写出整个 class 文件
func (cf *ClassFile) Assemble() (out []byte, err error) {
	defer perrors.Recover(&err)

	p := cpool.New(cf.PoolOptions...)
	cf.pool = p
	cf.register(p)
	if err := p.Resolve(); err != nil {
		return nil, cf.annotate(err, "")
	}

	w := jvmgen.NewByteWriter()
	w.WriteU32(jvmgen.ClassFileMagic)
	w.WriteU16(cf.MinorVersion)
	w.WriteU16(cf.MajorVersion)
	p.Encode(w)

	// Access flags, this class, super class
	w.WriteU16(cf.AccessFlags)
	w.WriteU16(uint16(p.IndexOf(cf.This)))
	if cf.Super != nil {
		w.WriteU16(uint16(p.IndexOf(cf.Super)))
	} else {
		w.WriteU16(0)
	}

	// Interfaces
	w.WriteU16(uint16(len(cf.Interfaces)))
	for _, iface := range cf.Interfaces {
		w.WriteU16(uint16(p.IndexOf(iface)))
	}

	// Fields
	w.WriteU16(uint16(len(cf.Fields)))
	for _, f := range cf.Fields {
		if err := f.Encode(w); err != nil {
			return nil, cf.annotate(err, f.Name())
		}
	}

	// Methods
	w.WriteU16(uint16(len(cf.Methods)))
	for _, m := range cf.Methods {
		if err := m.Encode(w); err != nil {
			return nil, cf.annotate(err, m.Name())
		}
	}

	// Attributes
	if err := writeAttributes(w, cf.Attributes); err != nil {
		return nil, cf.annotate(err, "")
	}
	return w.Bytes(), nil
}

// Write 装配并写出到 w
func (cf *ClassFile) Write(w io.Writer) error {
	data, err := cf.Assemble()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (cf *ClassFile) annotate(err error, member string) error {
	if ae, ok := perrors.As(err); ok && ae.Class == "" {
		return ae.InMethod(cf.Name(), member)
	}
	return err
}
