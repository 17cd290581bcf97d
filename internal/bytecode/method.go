package bytecode

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tangzhangming/pack200/internal/cpool"
	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// Layout 第一遍得到的字节偏移表，生成后不再修改
type Layout struct {
	// Offsets 每条指令的起始偏移，末尾多一项等于 CodeLength
	Offsets    []int
	CodeLength int
}

// Count 指令条数
func (l *Layout) Count() int {
	return len(l.Offsets) - 1
}

// OffsetOf 返回第 i 条指令的起始偏移，i 等于指令条数时返回代码长度
func (l *Layout) OffsetOf(i int) (int, error) {
	if i < 0 || i >= len(l.Offsets) {
		return 0, perrors.Malformed(perrors.P0008, "instruction %d outside 0..%d", i, l.Count())
	}
	return l.Offsets[i], nil
}

// Method 一个方法体的全部指令与布局
type Method struct {
	Instructions []*Instruction
	Layout       *Layout
}

// Decoder 方法体解码器
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder 创建解码器，logger 为 nil 时不输出日志
func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

// DecodeMethod 使用不输出日志的解码器解码方法体
func DecodeMethod(opcodes []int, src OperandSource) (*Method, error) {
	return NewDecoder(nil).Decode(opcodes, src)
}

// Decode 两遍解码：
// 第一遍逐条取操作数并得到偏移表，第二遍用偏移表修正跳转目标
func (d *Decoder) Decode(opcodes []int, src OperandSource) (*Method, error) {
	instructions := make([]*Instruction, len(opcodes))
	offsets := make([]int, len(opcodes)+1)

	pc := 0
	for i, op := range opcodes {
		form, err := Lookup(op)
		if err != nil {
			return nil, annotate(err, op, i)
		}
		ins := &Instruction{Index: i}
		if err := form.SetOperands(ins, src, pc); err != nil {
			return nil, annotate(err, op, i)
		}
		instructions[i] = ins
		offsets[i] = pc
		pc += ins.Len()
	}
	offsets[len(opcodes)] = pc

	if pc > jvmgen.MaxCodeLength {
		return nil, perrors.Malformed(perrors.P0007, "code length %d exceeds %d", pc, jvmgen.MaxCodeLength)
	}

	m := &Method{
		Instructions: instructions,
		Layout:       &Layout{Offsets: offsets, CodeLength: pc},
	}

	for _, ins := range instructions {
		if !ins.form.HasLabels() {
			continue
		}
		if err := ins.form.FixUpTargets(ins, m.Layout); err != nil {
			return nil, annotate(err, ins.Opcode, ins.Index)
		}
	}

	d.logger.Debug("method decoded",
		zap.Int("instructions", len(instructions)),
		zap.Int("codeLength", pc),
	)
	return m, nil
}

// Entries 返回需要加入常量池的指令
func (m *Method) Entries() []cpool.Entry {
	out := make([]cpool.Entry, 0, len(m.Instructions))
	for _, ins := range m.Instructions {
		if len(ins.refs) > 0 {
			out = append(out, ins)
		}
	}
	return out
}

// Register 把引用常量的指令作为辅助条目加入常量池
func (m *Method) Register(p *cpool.Pool) {
	for _, e := range m.Entries() {
		p.Add(e)
	}
}

// Bytes 拼接全部指令，须在常量池解析之后调用
func (m *Method) Bytes() ([]byte, error) {
	out := make([]byte, 0, m.Layout.CodeLength)
	for i, ins := range m.Instructions {
		b, err := ins.Bytes()
		if err != nil {
			return nil, err
		}
		if want := m.Layout.Offsets[i+1] - m.Layout.Offsets[i]; len(b) != want {
			return nil, perrors.Encoding(perrors.P0201, "length %d, layout says %d", len(b), want).
				WithInstruction(ins.Opcode, i)
		}
		out = append(out, b...)
	}
	if err := Verify(out, m.Layout); err != nil {
		return nil, err
	}
	return out, nil
}

// Renumber 把指令序号换算为字节偏移，序号等于指令条数时返回代码长度
func (m *Method) Renumber(index int) (int, error) {
	return m.Layout.OffsetOf(index)
}

// Disassemble 反汇编方法体
func (m *Method) Disassemble(name string) string {
	var sb strings.Builder
	sb.WriteString("== ")
	sb.WriteString(name)
	sb.WriteString(" ==\n")
	for i, ins := range m.Instructions {
		fmt.Fprintf(&sb, "%04d %5d  %s\n", i, m.Layout.Offsets[i], ins)
	}
	return sb.String()
}
