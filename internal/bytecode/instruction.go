package bytecode

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/pack200/internal/cpool"
	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// refSlot 输出缓冲中等待常量池索引的位置
type refSlot struct {
	entry cpool.Constant
	pos   int
	width int // 1 或 2 字节
}

// labelSlot 输出缓冲中等待跳转偏移的位置
type labelSlot struct {
	delta int // 相对指令条数
	pos   int
	width int // 2 或 4 字节
}

// Instruction 一条已解码的指令
// 作为常量池的辅助条目参与解析：嵌套条目是它引用的常量，Resolve 把索引写回缓冲
type Instruction struct {
	Opcode   int
	Index    int   // 在方法中的序号
	Operands []int // 立即数、局部变量、case 值等
	Padding  int   // switch 对齐填充
	Widened  int   // wide 前缀修饰的操作码
	Targets  []int // 修正后的目标指令序号

	form     *Form
	refs     []refSlot
	labels   []labelSlot
	pinned   []cpool.Entry
	buf      []byte
	resolved bool
}

// Form 返回指令形态
func (ins *Instruction) Form() *Form {
	return ins.form
}

// Len 编码后的字节数
func (ins *Instruction) Len() int {
	return len(ins.buf)
}

// Refs 返回引用的常量
func (ins *Instruction) Refs() []cpool.Constant {
	out := make([]cpool.Constant, len(ins.refs))
	for i, r := range ins.refs {
		out[i] = r.entry
	}
	return out
}

func (ins *Instruction) addRef(c cpool.Constant, pos, width int) {
	ins.refs = append(ins.refs, refSlot{entry: c, pos: pos, width: width})
}

func (ins *Instruction) addLabel(delta, pos, width int) {
	ins.labels = append(ins.labels, labelSlot{delta: delta, pos: pos, width: width})
}

// NestedEntries 实现 cpool.Entry
func (ins *Instruction) NestedEntries() []cpool.Entry {
	if len(ins.refs) == 0 {
		return nil
	}
	out := make([]cpool.Entry, len(ins.refs))
	for i, r := range ins.refs {
		out[i] = r.entry
	}
	return out
}

// PinnedEntries 实现 cpool.Pinner：单字节引用的常量必须位于常量池开头
func (ins *Instruction) PinnedEntries() []cpool.Entry {
	return ins.pinned
}

// Resolve 把引用常量的索引写入输出缓冲
func (ins *Instruction) Resolve(p *cpool.Pool) error {
	for _, r := range ins.refs {
		idx, err := p.Require(r.entry)
		if err != nil {
			return annotate(err, ins.Opcode, ins.Index)
		}
		switch r.width {
		case 1:
			// 第一遍的临时索引可能超过 255，必须前置的重排之后才会落入单字节范围
			if idx > jvmgen.MaxSingleByteRef && p.FinalPass() {
				return perrors.Invariant(perrors.P0006, "single-byte reference to #%d", idx).
					WithEntry(r.entry.String()).WithInstruction(ins.Opcode, ins.Index)
			}
			ins.buf[r.pos] = byte(idx)
		default:
			jvmgen.PutU16(ins.buf, r.pos, idx)
		}
	}
	ins.resolved = true
	return nil
}

// Bytes 返回编码后的指令，引用常量的指令须先解析
func (ins *Instruction) Bytes() ([]byte, error) {
	if len(ins.refs) > 0 && !ins.resolved {
		return nil, perrors.Invariant(perrors.P0104, "instruction bytes read before resolve").
			WithInstruction(ins.Opcode, ins.Index)
	}
	return ins.buf, nil
}

// String 返回反汇编形式
func (ins *Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(jvmgen.OpcodeName(ins.Opcode))
	if ins.form != nil && ins.form.Shape == ShapeWide {
		sb.WriteString(" ")
		sb.WriteString(jvmgen.OpcodeName(ins.Widened))
	}
	for _, r := range ins.refs {
		fmt.Fprintf(&sb, " <%s>", r.entry)
	}
	for _, v := range ins.Operands {
		fmt.Fprintf(&sb, " %d", v)
	}
	if len(ins.Targets) > 0 {
		sb.WriteString(" ->")
		for _, t := range ins.Targets {
			fmt.Fprintf(&sb, " @%d", t)
		}
	} else {
		for _, l := range ins.labels {
			fmt.Fprintf(&sb, " %+d", l.delta)
		}
	}
	return sb.String()
}

// annotate 给输入错误补上指令位置
func annotate(err error, opcode, index int) error {
	if ae, ok := perrors.As(err); ok && ae.Instruction < 0 {
		return ae.WithInstruction(opcode, index)
	}
	return err
}
