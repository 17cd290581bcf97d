package classfile

import (
	"github.com/tangzhangming/pack200/internal/bytecode"
	"github.com/tangzhangming/pack200/internal/cpool"
	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// ExceptionHandler 异常表项，位置以指令序号给出
// End 为不包含的结束序号，可以等于指令条数
type ExceptionHandler struct {
	Start     int
	End       int
	Handler   int
	CatchType *cpool.Class // nil 表示捕获全部
}

// Code 方法体属性
type Code struct {
	attrBase
	MaxStack   int
	MaxLocals  int
	Method     *bytecode.Method
	Handlers   []ExceptionHandler
	Attributes []Attribute

	catchIndices []uint16
}

// NewCode 创建 Code 属性，max_stack/max_locals 由调用者给出
func NewCode(maxStack, maxLocals int, method *bytecode.Method, handlers []ExceptionHandler, attrs ...Attribute) *Code {
	return &Code{
		attrBase:   newAttrBase(jvmgen.AttrCode),
		MaxStack:   maxStack,
		MaxLocals:  maxLocals,
		Method:     method,
		Handlers:   handlers,
		Attributes: attrs,
	}
}

func (a *Code) NestedEntries() []cpool.Entry {
	out := []cpool.Entry{a.name}
	out = append(out, a.Method.Entries()...)
	for _, h := range a.Handlers {
		if h.CatchType != nil {
			out = append(out, h.CatchType)
		}
	}
	for _, attr := range a.Attributes {
		out = append(out, attr)
	}
	return out
}

func (a *Code) Resolve(p *cpool.Pool) error {
	if err := a.resolveName(p); err != nil {
		return err
	}
	a.catchIndices = a.catchIndices[:0]
	for _, h := range a.Handlers {
		var idx uint16
		if h.CatchType != nil {
			var err error
			if idx, err = p.Require(h.CatchType); err != nil {
				return err
			}
		}
		a.catchIndices = append(a.catchIndices, idx)
	}
	return nil
}

func (a *Code) Encode(w *jvmgen.ByteWriter) error {
	if a.MaxStack < 0 || a.MaxStack > 0xFFFF || a.MaxLocals < 0 || a.MaxLocals > 0xFFFF {
		return perrors.Malformed(perrors.P0007, "max_stack %d / max_locals %d out of range", a.MaxStack, a.MaxLocals)
	}
	code, err := a.Method.Bytes()
	if err != nil {
		return err
	}
	if len(code) == 0 {
		return perrors.Malformed(perrors.P0007, "empty method body")
	}

	return a.encodeAttribute(w, func(b *jvmgen.ByteWriter) error {
		b.WriteU16(uint16(a.MaxStack))
		b.WriteU16(uint16(a.MaxLocals))
		b.WriteU32(uint32(len(code)))
		b.WriteBytes(code)

		b.WriteU16(uint16(len(a.Handlers)))
		for i, h := range a.Handlers {
			if h.Start >= h.End {
				return perrors.Malformed(perrors.P0005, "exception handler %d covers [%d, %d)", i, h.Start, h.End)
			}
			start, err := a.Method.Renumber(h.Start)
			if err != nil {
				return err
			}
			end, err := a.Method.Renumber(h.End)
			if err != nil {
				return err
			}
			handler, err := a.Method.Renumber(h.Handler)
			if err != nil {
				return err
			}
			if handler >= len(code) {
				return perrors.Malformed(perrors.P0008, "exception handler %d jumps past the code", i)
			}
			b.WriteU16(uint16(start))
			b.WriteU16(uint16(end))
			b.WriteU16(uint16(handler))
			b.WriteU16(a.catchIndices[i])
		}

		b.WriteU16(uint16(len(a.Attributes)))
		for _, attr := range a.Attributes {
			if err := attr.Encode(b); err != nil {
				return err
			}
		}
		return nil
	})
}

// ============================================================================
// LineNumberTable
// ============================================================================

// LineNumber 行号表项，位置以指令序号给出
type LineNumber struct {
	Instruction int
	Line        int
}

// LineNumberTable 行号表，写出时通过方法布局换算为字节偏移
type LineNumberTable struct {
	attrBase
	Method  *bytecode.Method
	Entries []LineNumber
}

// NewLineNumberTable 创建行号表
func NewLineNumberTable(method *bytecode.Method, entries ...LineNumber) *LineNumberTable {
	return &LineNumberTable{attrBase: newAttrBase(jvmgen.AttrLineNumberTable), Method: method, Entries: entries}
}

func (a *LineNumberTable) NestedEntries() []cpool.Entry { return []cpool.Entry{a.name} }
func (a *LineNumberTable) Resolve(p *cpool.Pool) error  { return a.resolveName(p) }

func (a *LineNumberTable) Encode(w *jvmgen.ByteWriter) error {
	return a.encodeAttribute(w, func(b *jvmgen.ByteWriter) error {
		b.WriteU16(uint16(len(a.Entries)))
		for _, e := range a.Entries {
			if e.Instruction >= a.Method.Layout.Count() {
				return perrors.Malformed(perrors.P0008, "line %d starts at instruction %d of %d", e.Line, e.Instruction, a.Method.Layout.Count())
			}
			pc, err := a.Method.Renumber(e.Instruction)
			if err != nil {
				return err
			}
			if e.Line < 0 || e.Line > 0xFFFF {
				return perrors.Malformed(perrors.P0005, "line number %d", e.Line)
			}
			b.WriteU16(uint16(pc))
			b.WriteU16(uint16(e.Line))
		}
		return nil
	})
}
