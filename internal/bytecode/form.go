// Package bytecode 把按操作码排列的指令流与操作数源装配为 JVM 方法字节码：
// 按操作数形态分派的指令形态表、两遍布局与跳转修正。
package bytecode

import (
	"github.com/tangzhangming/pack200/internal/cpool"
	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// Shape 指令的操作数形态
type Shape int

const (
	ShapeNone                Shape = iota // 无操作数
	ShapeLocal                            // 局部变量索引 (u1)
	ShapeByte                             // 有符号立即数 (bipush)
	ShapeArrayType                        // 基本类型数组 (newarray)
	ShapeShort                            // 有符号短立即数 (sipush)
	ShapeIinc                             // 局部变量 + 有符号增量
	ShapeLdc                              // 单字节常量引用
	ShapeLdcWide                          // 双字节常量引用 (ldc_w, ldc2_w)
	ShapeClassRef                         // 类引用
	ShapeMultianewarray                   // 类引用 + 维数
	ShapeFieldRef                         // 字段引用
	ShapeMethodRef                        // 方法引用
	ShapeInterfaceMethodRef               // 接口方法引用 + 参数槽位数 + 0
	ShapeLabel                            // 16 位跳转偏移
	ShapeWideLabel                        // 32 位跳转偏移
	ShapeTableswitch                      // tableswitch
	ShapeLookupswitch                     // lookupswitch
	ShapeWide                             // wide 前缀指令
	ShapeUnsupported                      // 无法装配的操作码
)

var shapeNames = [...]string{
	"none", "local", "byte", "arraytype", "short", "iinc", "ldc", "ldc_w",
	"classref", "multianewarray", "fieldref", "methodref", "imethodref",
	"label", "label_w", "tableswitch", "lookupswitch", "wide", "unsupported",
}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return "invalid"
	}
	return shapeNames[s]
}

// Form 一类操作码共享的只读描述
type Form struct {
	Opcode int
	Name   string
	Shape  Shape
	// Length 定长指令的字节数，变长指令为 0
	Length int
	// ConstantTags ldc 类指令接受的常量标签
	ConstantTags []uint8
}

// OperandType 返回操作数形态
func (f *Form) OperandType() Shape {
	return f.Shape
}

// HasLabels 是否需要跳转修正
func (f *Form) HasLabels() bool {
	switch f.Shape {
	case ShapeLabel, ShapeWideLabel, ShapeTableswitch, ShapeLookupswitch:
		return true
	}
	return false
}

// ============================================================================
// 形态表
// ============================================================================

var forms [256]*Form

var (
	ldcTags  = []uint8{jvmgen.ConstantInteger, jvmgen.ConstantFloat, jvmgen.ConstantString, jvmgen.ConstantClass}
	ldc2Tags = []uint8{jvmgen.ConstantLong, jvmgen.ConstantDouble}
)

// 定长形态的字节数
var shapeLength = map[Shape]int{
	ShapeNone:               1,
	ShapeLocal:              2,
	ShapeByte:               2,
	ShapeArrayType:          2,
	ShapeShort:              3,
	ShapeIinc:               3,
	ShapeLdc:                2,
	ShapeLdcWide:            3,
	ShapeClassRef:           3,
	ShapeMultianewarray:     4,
	ShapeFieldRef:           3,
	ShapeMethodRef:          3,
	ShapeInterfaceMethodRef: 5,
	ShapeLabel:              3,
	ShapeWideLabel:          5,
}

func register(shape Shape, ops ...int) {
	for _, op := range ops {
		forms[op] = &Form{
			Opcode: op,
			Name:   jvmgen.OpcodeName(op),
			Shape:  shape,
			Length: shapeLength[shape],
		}
	}
}

func init() {
	for op := jvmgen.OpNop; op <= jvmgen.MaxOpcode; op++ {
		register(ShapeNone, op)
	}

	register(ShapeLocal,
		jvmgen.OpIload, jvmgen.OpLload, jvmgen.OpFload, jvmgen.OpDload, jvmgen.OpAload,
		jvmgen.OpIstore, jvmgen.OpLstore, jvmgen.OpFstore, jvmgen.OpDstore, jvmgen.OpAstore,
		jvmgen.OpRet)
	register(ShapeByte, jvmgen.OpBipush)
	register(ShapeArrayType, jvmgen.OpNewarray)
	register(ShapeShort, jvmgen.OpSipush)
	register(ShapeIinc, jvmgen.OpIinc)
	register(ShapeLdc, jvmgen.OpLdc)
	register(ShapeLdcWide, jvmgen.OpLdcW, jvmgen.OpLdc2W)
	register(ShapeClassRef, jvmgen.OpNew, jvmgen.OpAnewarray, jvmgen.OpCheckcast, jvmgen.OpInstanceof)
	register(ShapeMultianewarray, jvmgen.OpMultianewarray)
	register(ShapeFieldRef, jvmgen.OpGetstatic, jvmgen.OpPutstatic, jvmgen.OpGetfield, jvmgen.OpPutfield)
	register(ShapeMethodRef, jvmgen.OpInvokevirtual, jvmgen.OpInvokespecial, jvmgen.OpInvokestatic)
	register(ShapeInterfaceMethodRef, jvmgen.OpInvokeinterface)
	register(ShapeLabel,
		jvmgen.OpIfeq, jvmgen.OpIfne, jvmgen.OpIflt, jvmgen.OpIfge, jvmgen.OpIfgt, jvmgen.OpIfle,
		jvmgen.OpIfIcmpeq, jvmgen.OpIfIcmpne, jvmgen.OpIfIcmplt, jvmgen.OpIfIcmpge,
		jvmgen.OpIfIcmpgt, jvmgen.OpIfIcmple, jvmgen.OpIfAcmpeq, jvmgen.OpIfAcmpne,
		jvmgen.OpGoto, jvmgen.OpJsr, jvmgen.OpIfnull, jvmgen.OpIfnonnull)
	register(ShapeWideLabel, jvmgen.OpGotoW, jvmgen.OpJsrW)
	register(ShapeTableswitch, jvmgen.OpTableswitch)
	register(ShapeLookupswitch, jvmgen.OpLookupswitch)
	register(ShapeWide, jvmgen.OpWide)
	register(ShapeUnsupported, jvmgen.OpInvokedynamic)

	forms[jvmgen.OpLdc].ConstantTags = ldcTags
	forms[jvmgen.OpLdcW].ConstantTags = ldcTags
	forms[jvmgen.OpLdc2W].ConstantTags = ldc2Tags
}

// Lookup 按操作码取得形态
func Lookup(opcode int) (*Form, error) {
	if opcode < 0 || opcode >= len(forms) || forms[opcode] == nil {
		return nil, perrors.Malformed(perrors.P0004, "unknown opcode %d", opcode)
	}
	f := forms[opcode]
	if f.Shape == ShapeUnsupported {
		return nil, perrors.Malformed(perrors.P0004, "%s is not supported", f.Name)
	}
	return f, nil
}

// 可以带 wide 前缀的操作码
func isWidenable(op int) bool {
	switch op {
	case jvmgen.OpIload, jvmgen.OpLload, jvmgen.OpFload, jvmgen.OpDload, jvmgen.OpAload,
		jvmgen.OpIstore, jvmgen.OpLstore, jvmgen.OpFstore, jvmgen.OpDstore, jvmgen.OpAstore,
		jvmgen.OpRet, jvmgen.OpIinc:
		return true
	}
	return false
}

// ============================================================================
// 读取操作数
// ============================================================================

// SetOperands 从操作数源取出本指令需要的全部操作数并生成输出缓冲
// codeLengthSoFar 为本指令之前的代码长度，switch 据此计算对齐填充
func (f *Form) SetOperands(ins *Instruction, src OperandSource, codeLengthSoFar int) error {
	ins.form = f
	ins.Opcode = f.Opcode

	switch f.Shape {
	case ShapeNone:
		ins.buf = []byte{byte(f.Opcode)}

	case ShapeLocal:
		local, err := src.NextLocal()
		if err != nil {
			return err
		}
		if local < 0 || local > 0xFF {
			return perrors.Malformed(perrors.P0005, "local %d needs a wide prefix", local)
		}
		ins.Operands = []int{local}
		ins.buf = []byte{byte(f.Opcode), byte(local)}

	case ShapeByte:
		v, err := src.NextByte()
		if err != nil {
			return err
		}
		if v < -128 || v > 127 {
			return perrors.Malformed(perrors.P0005, "byte operand %d out of range", v)
		}
		ins.Operands = []int{v}
		ins.buf = []byte{byte(f.Opcode), byte(int8(v))}

	case ShapeArrayType:
		v, err := src.NextByte()
		if err != nil {
			return err
		}
		if v < 4 || v > 11 {
			return perrors.Malformed(perrors.P0005, "bad newarray type %d", v)
		}
		ins.Operands = []int{v}
		ins.buf = []byte{byte(f.Opcode), byte(v)}

	case ShapeShort:
		v, err := src.NextShort()
		if err != nil {
			return err
		}
		if v < -32768 || v > 32767 {
			return perrors.Malformed(perrors.P0005, "short operand %d out of range", v)
		}
		ins.Operands = []int{v}
		ins.buf = make([]byte, 3)
		ins.buf[0] = byte(f.Opcode)
		jvmgen.PutI16(ins.buf, 1, int16(v))

	case ShapeIinc:
		local, err := src.NextLocal()
		if err != nil {
			return err
		}
		delta, err := src.NextByte()
		if err != nil {
			return err
		}
		if local < 0 || local > 0xFF || delta < -128 || delta > 127 {
			return perrors.Malformed(perrors.P0005, "iinc %d %d needs a wide prefix", local, delta)
		}
		ins.Operands = []int{local, delta}
		ins.buf = []byte{byte(f.Opcode), byte(local), byte(int8(delta))}

	case ShapeLdc, ShapeLdcWide:
		c, err := src.NextConstant()
		if err != nil {
			return err
		}
		if !f.accepts(c) {
			return perrors.Malformed(perrors.P0005, "%s cannot load %s", f.Name, jvmgen.TagName(c.Tag())).WithEntry(c.String())
		}
		width := 2
		if f.Shape == ShapeLdc {
			width = 1
			ins.pinned = append(ins.pinned, c)
		}
		ins.buf = make([]byte, 1+width)
		ins.buf[0] = byte(f.Opcode)
		ins.addRef(c, 1, width)

	case ShapeClassRef, ShapeMultianewarray:
		c, err := src.NextClassRef()
		if err != nil {
			return err
		}
		ins.buf = make([]byte, f.Length)
		ins.buf[0] = byte(f.Opcode)
		ins.addRef(c, 1, 2)
		if f.Shape == ShapeMultianewarray {
			dims, err := src.NextByte()
			if err != nil {
				return err
			}
			if dims < 1 || dims > 0xFF {
				return perrors.Malformed(perrors.P0005, "multianewarray dimensions %d", dims)
			}
			ins.Operands = []int{dims}
			ins.buf[3] = byte(dims)
		}

	case ShapeFieldRef:
		ref, err := src.NextFieldRef()
		if err != nil {
			return err
		}
		ins.buf = make([]byte, 3)
		ins.buf[0] = byte(f.Opcode)
		ins.addRef(ref, 1, 2)

	case ShapeMethodRef:
		ref, err := src.NextMethodRef()
		if err != nil {
			return err
		}
		ins.buf = make([]byte, 3)
		ins.buf[0] = byte(f.Opcode)
		ins.addRef(ref, 1, 2)

	case ShapeInterfaceMethodRef:
		ref, err := src.NextInterfaceMethodRef()
		if err != nil {
			return err
		}
		slots, err := ArgumentSlots(ref.NameAndType().Descriptor())
		if err != nil {
			return err
		}
		count := slots + 1
		if count > 0xFF {
			return perrors.Malformed(perrors.P0007, "invokeinterface count %d", count).WithEntry(ref.String())
		}
		ins.Operands = []int{count}
		ins.buf = []byte{byte(f.Opcode), 0, 0, byte(count), 0}
		ins.addRef(ref, 1, 2)

	case ShapeLabel, ShapeWideLabel:
		delta, err := src.NextLabel()
		if err != nil {
			return err
		}
		width := 2
		if f.Shape == ShapeWideLabel {
			width = 4
		}
		ins.buf = make([]byte, 1+width)
		ins.buf[0] = byte(f.Opcode)
		ins.addLabel(delta, 1, width)

	case ShapeTableswitch:
		return f.setTableswitch(ins, src, codeLengthSoFar)

	case ShapeLookupswitch:
		return f.setLookupswitch(ins, src, codeLengthSoFar)

	case ShapeWide:
		return f.setWide(ins, src)

	default:
		return perrors.Malformed(perrors.P0004, "%s is not supported", f.Name)
	}
	return nil
}

func (f *Form) accepts(c cpool.Constant) bool {
	for _, tag := range f.ConstantTags {
		if c.Tag() == tag {
			return true
		}
	}
	return false
}

// SwitchPadding switch 操作码之后的对齐填充字节数
func SwitchPadding(codeLengthSoFar int) int {
	return 3 - codeLengthSoFar%4
}

func readCaseCount(src OperandSource) (int, error) {
	n, err := src.NextCaseCount()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > jvmgen.MaxCodeLength/4 {
		return 0, perrors.Malformed(perrors.P0005, "case count %d", n)
	}
	return n, nil
}

// tableswitch: op pad default low high offsets[n]
func (f *Form) setTableswitch(ins *Instruction, src OperandSource, pc int) error {
	n, err := readCaseCount(src)
	if err != nil {
		return err
	}
	low, err := src.NextCaseValue()
	if err != nil {
		return err
	}
	if n > 0 && int64(low)+int64(n)-1 > int64(^uint32(0)>>1) {
		return perrors.Malformed(perrors.P0005, "tableswitch high overflows: low %d, %d cases", low, n)
	}
	high := int32(int64(low) + int64(n) - 1)

	pad := SwitchPadding(pc)
	ins.Padding = pad
	ins.buf = make([]byte, 1+pad+4*(3+n))
	ins.buf[0] = byte(f.Opcode)
	base := 1 + pad
	jvmgen.PutI32(ins.buf, base+4, low)
	jvmgen.PutI32(ins.buf, base+8, high)
	ins.Operands = []int{n, int(low)}

	deflt, err := src.NextLabel()
	if err != nil {
		return err
	}
	ins.addLabel(deflt, base, 4)
	for i := 0; i < n; i++ {
		delta, err := src.NextLabel()
		if err != nil {
			return err
		}
		ins.addLabel(delta, base+12+4*i, 4)
	}
	return nil
}

// lookupswitch: op pad default npairs (match offset)[n]
func (f *Form) setLookupswitch(ins *Instruction, src OperandSource, pc int) error {
	n, err := readCaseCount(src)
	if err != nil {
		return err
	}
	pad := SwitchPadding(pc)
	ins.Padding = pad
	ins.buf = make([]byte, 1+pad+4*(2+2*n))
	ins.buf[0] = byte(f.Opcode)
	base := 1 + pad
	jvmgen.PutI32(ins.buf, base+4, int32(n))
	ins.Operands = []int{n}

	for i := 0; i < n; i++ {
		match, err := src.NextCaseValue()
		if err != nil {
			return err
		}
		jvmgen.PutI32(ins.buf, base+8+8*i, match)
		ins.Operands = append(ins.Operands, int(match))
	}

	deflt, err := src.NextLabel()
	if err != nil {
		return err
	}
	ins.addLabel(deflt, base, 4)
	for i := 0; i < n; i++ {
		delta, err := src.NextLabel()
		if err != nil {
			return err
		}
		ins.addLabel(delta, base+8+8*i+4, 4)
	}
	return nil
}

// wide: c4 op u16 或 c4 iinc u16 i16
func (f *Form) setWide(ins *Instruction, src OperandSource) error {
	op, err := src.NextWideOpcode()
	if err != nil {
		return err
	}
	if !isWidenable(op) {
		return perrors.Malformed(perrors.P0005, "opcode %d cannot be widened", op)
	}
	local, err := src.NextLocal()
	if err != nil {
		return err
	}
	if local < 0 || local > 0xFFFF {
		return perrors.Malformed(perrors.P0005, "wide local %d out of range", local)
	}
	ins.Widened = op

	if op == jvmgen.OpIinc {
		delta, err := src.NextShort()
		if err != nil {
			return err
		}
		if delta < -32768 || delta > 32767 {
			return perrors.Malformed(perrors.P0005, "wide iinc delta %d out of range", delta)
		}
		ins.Operands = []int{local, delta}
		ins.buf = make([]byte, 6)
		jvmgen.PutI16(ins.buf, 4, int16(delta))
	} else {
		ins.Operands = []int{local}
		ins.buf = make([]byte, 4)
	}
	ins.buf[0] = byte(f.Opcode)
	ins.buf[1] = byte(op)
	jvmgen.PutU16(ins.buf, 2, uint16(local))
	return nil
}

// ============================================================================
// 跳转修正
// ============================================================================

// FixUpTargets 把以指令条数表示的相对目标换算为字节偏移并写入占位处
// 偏移相对于本指令的起始位置
func (f *Form) FixUpTargets(ins *Instruction, layout *Layout) error {
	if len(ins.labels) == 0 {
		return nil
	}
	ins.Targets = ins.Targets[:0]
	here, err := layout.OffsetOf(ins.Index)
	if err != nil {
		return err
	}

	if f.Shape == ShapeTableswitch || f.Shape == ShapeLookupswitch {
		if (here+1+ins.Padding)%4 != 0 {
			return perrors.Encoding(perrors.P0200, "%s at %d padded by %d", f.Name, here, ins.Padding)
		}
	}

	for _, l := range ins.labels {
		target := ins.Index + l.delta
		if target < 0 || target >= layout.Count() {
			return perrors.Malformed(perrors.P0008, "label %+d targets instruction %d of %d", l.delta, target, layout.Count())
		}
		to, _ := layout.OffsetOf(target)
		offset := to - here
		if l.width == 2 {
			if offset < -32768 || offset > 32767 {
				return perrors.Malformed(perrors.P0008, "branch offset %d needs a wide form", offset)
			}
			jvmgen.PutI16(ins.buf, l.pos, int16(offset))
		} else {
			jvmgen.PutI32(ins.buf, l.pos, int32(offset))
		}
		ins.Targets = append(ins.Targets, target)
	}
	return nil
}
