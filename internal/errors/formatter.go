package errors

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// ============================================================================
// 错误格式化器
// ============================================================================

// Formatter 把错误格式化为终端输出
//
//	error[P0005]: ldc cannot load a Long constant
//	 --> demo/Hello.main, instruction 3 (ldc)
//	 = entry: Long 5
//	 = help: use ldc2_w for Long and Double constants
type Formatter struct {
	Colors    bool // 是否使用颜色
	ShowHints bool // 是否显示修复建议
	ShowStack bool // 不变量错误是否显示调用栈
}

// NewFormatter 创建默认格式化器
func NewFormatter() *Formatter {
	return &Formatter{
		ShowHints: true,
	}
}

// Format 格式化单个错误，非 AssemblyError 只输出消息
func (f *Formatter) Format(err error) string {
	ae, ok := As(err)
	if !ok {
		return fmt.Sprintf("%s: %s\n", f.colorize("error", ColorBoldRed), err.Error())
	}

	var sb strings.Builder

	// 错误头: error[P0005]: 消息；实现缺陷标为 bug
	level, color := "error", ColorBoldRed
	if ae.Fatal() {
		level, color = "bug", ColorBoldYellow
	}
	sb.WriteString(fmt.Sprintf("%s%s: %s\n",
		f.colorize(level, color),
		f.colorize("["+ae.Code+"]", color),
		f.colorize(ae.Message, ColorBoldWhite)))

	// 位置: --> Class.method, instruction 3 (ldc)
	if loc := location(ae); loc != "" {
		sb.WriteString(fmt.Sprintf(" %s %s\n", f.colorize("-->", ColorCyan), loc))
	}

	if ae.Entry != "" {
		sb.WriteString(fmt.Sprintf(" %s %s\n", f.colorize("= entry:", ColorCyan), ae.Entry))
	}

	if f.ShowHints {
		for _, hint := range GetSuggestions(ae.Code) {
			sb.WriteString(fmt.Sprintf(" %s %s\n", f.colorize("= help:", ColorCyan), hint))
		}
	}

	if f.ShowStack && ae.Fatal() {
		if st := ae.StackTrace(); len(st) > 0 {
			sb.WriteString(f.colorize(" = stack:", ColorCyan))
			sb.WriteString(fmt.Sprintf("%+v\n", st))
		}
	}

	return sb.String()
}

func location(ae *AssemblyError) string {
	var parts []string
	if ae.Class != "" {
		name := ae.Class
		if ae.Method != "" {
			name += "." + ae.Method
		}
		parts = append(parts, name)
	}
	if ae.Instruction >= 0 {
		ins := fmt.Sprintf("instruction %d", ae.Instruction)
		if ae.Opcode >= 0 {
			ins += fmt.Sprintf(" (%s)", jvmgen.OpcodeName(ae.Opcode))
		}
		parts = append(parts, ins)
	}
	return strings.Join(parts, ", ")
}

func (f *Formatter) colorize(s string, color Color) string {
	return Colorize(s, color, f.Colors)
}
