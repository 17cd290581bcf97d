package bytecode

import (
	"encoding/binary"

	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// Verifier 按编码后的字节重新切分指令，检查与偏移表是否一致
type Verifier struct {
	code   []byte
	layout *Layout
	starts map[int]bool // 指令起始偏移
}

// NewVerifier 创建验证器
func NewVerifier(code []byte, layout *Layout) *Verifier {
	starts := make(map[int]bool, len(layout.Offsets))
	for _, off := range layout.Offsets[:layout.Count()] {
		starts[off] = true
	}
	return &Verifier{code: code, layout: layout, starts: starts}
}

// Verify 检查指令边界、switch 对齐和跳转目标
func Verify(code []byte, layout *Layout) error {
	return NewVerifier(code, layout).Verify()
}

// Verify 执行验证
func (v *Verifier) Verify() error {
	if len(v.code) != v.layout.CodeLength {
		return perrors.Encoding(perrors.P0201, "code is %d bytes, layout says %d", len(v.code), v.layout.CodeLength)
	}

	pc := 0
	for i := 0; i < v.layout.Count(); i++ {
		if pc != v.layout.Offsets[i] {
			return perrors.Encoding(perrors.P0201, "instruction starts at %d, layout says %d", pc, v.layout.Offsets[i]).
				WithInstruction(int(v.code[pc]), i)
		}
		size, err := v.instructionSize(pc)
		if err != nil {
			return annotate(err, int(v.code[pc]), i)
		}
		if err := v.checkTargets(pc); err != nil {
			return annotate(err, int(v.code[pc]), i)
		}
		pc += size
	}
	if pc != len(v.code) {
		return perrors.Encoding(perrors.P0201, "%d trailing bytes", len(v.code)-pc)
	}
	return nil
}

func (v *Verifier) need(pc, n int) error {
	if pc+n > len(v.code) {
		return perrors.Encoding(perrors.P0201, "instruction at %d truncated", pc)
	}
	return nil
}

func (v *Verifier) i32(pos int) int {
	return int(int32(binary.BigEndian.Uint32(v.code[pos:])))
}

// instructionSize 获取指令大小（包括操作码、填充和参数）
func (v *Verifier) instructionSize(pc int) (int, error) {
	op := int(v.code[pc])
	form := forms[op]
	if form == nil {
		return 0, perrors.Encoding(perrors.P0201, "unknown opcode %d at %d", op, pc)
	}

	switch form.Shape {
	case ShapeTableswitch, ShapeLookupswitch:
		pad := SwitchPadding(pc)
		base := pc + 1 + pad
		if base%4 != 0 {
			return 0, perrors.Encoding(perrors.P0200, "%s at %d: table starts at %d", form.Name, pc, base)
		}
		if err := v.need(pc, 1+pad+12); err != nil {
			return 0, err
		}
		var size int
		if form.Shape == ShapeTableswitch {
			n := v.i32(base+8) - v.i32(base+4) + 1
			size = 1 + pad + 4*(3+n)
		} else {
			size = 1 + pad + 4*(2+2*v.i32(base+4))
		}
		if err := v.need(pc, size); err != nil {
			return 0, err
		}
		return size, nil
	case ShapeWide:
		if err := v.need(pc, 2); err != nil {
			return 0, err
		}
		size := 4
		if int(v.code[pc+1]) == jvmgen.OpIinc {
			size = 6
		}
		return size, v.need(pc, size)
	default:
		return form.Length, v.need(pc, form.Length)
	}
}

// checkTargets 跳转目标必须落在指令起始位置
func (v *Verifier) checkTargets(pc int) error {
	form := forms[v.code[pc]]
	var targets []int

	switch form.Shape {
	case ShapeLabel:
		targets = append(targets, pc+int(int16(binary.BigEndian.Uint16(v.code[pc+1:]))))
	case ShapeWideLabel:
		targets = append(targets, pc+v.i32(pc+1))
	case ShapeTableswitch:
		base := pc + 1 + SwitchPadding(pc)
		targets = append(targets, pc+v.i32(base))
		n := v.i32(base+8) - v.i32(base+4) + 1
		for i := 0; i < n; i++ {
			targets = append(targets, pc+v.i32(base+12+4*i))
		}
	case ShapeLookupswitch:
		base := pc + 1 + SwitchPadding(pc)
		targets = append(targets, pc+v.i32(base))
		n := v.i32(base + 4)
		for i := 0; i < n; i++ {
			targets = append(targets, pc+v.i32(base+12+8*i))
		}
	}

	for _, t := range targets {
		if !v.starts[t] {
			return perrors.Encoding(perrors.P0201, "branch at %d targets %d, not an instruction start", pc, t)
		}
	}
	return nil
}
