package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ============================================================================
// 装配错误
// ============================================================================

// AssemblyError class 文件装配错误
type AssemblyError struct {
	Code        string // 错误码 (P0001)
	Kind        Kind   // 错误类别
	Message     string // 主消息
	Class       string // 所在类（可选）
	Method      string // 所在方法（可选）
	Opcode      int    // 操作码，-1 表示无
	Instruction int    // 指令序号，-1 表示无
	Entry       string // 相关常量池条目描述（可选）
	cause       error
}

// Error 实现 error 接口
func (e *AssemblyError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code)
	sb.WriteString(": ")
	if e.Class != "" {
		sb.WriteString(e.Class)
		if e.Method != "" {
			sb.WriteString(".")
			sb.WriteString(e.Method)
		}
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Instruction >= 0 {
		fmt.Fprintf(&sb, " (instruction %d", e.Instruction)
		if e.Opcode >= 0 {
			fmt.Fprintf(&sb, ", opcode %d", e.Opcode)
		}
		sb.WriteString(")")
	}
	if e.Entry != "" {
		fmt.Fprintf(&sb, " [%s]", e.Entry)
	}
	return sb.String()
}

// Unwrap 返回底层错误
func (e *AssemblyError) Unwrap() error {
	return e.cause
}

// Fatal 不变量与编码错误说明实现有缺陷，不能恢复
func (e *AssemblyError) Fatal() bool {
	return e.Kind != KindMalformed
}

// StackTrace 返回不变量错误创建时的调用栈（其他错误返回 nil）
func (e *AssemblyError) StackTrace() pkgerrors.StackTrace {
	var st interface{ StackTrace() pkgerrors.StackTrace }
	if stderrors.As(e.cause, &st) {
		return st.StackTrace()
	}
	return nil
}

func newError(code string, format string, args ...interface{}) *AssemblyError {
	return &AssemblyError{
		Code:        code,
		Kind:        KindOf(code),
		Message:     fmt.Sprintf(format, args...),
		Opcode:      -1,
		Instruction: -1,
	}
}

// Malformed 创建输入错误
func Malformed(code string, format string, args ...interface{}) *AssemblyError {
	return newError(code, format, args...)
}

// Invariant 创建不变量错误，并记录调用栈
func Invariant(code string, format string, args ...interface{}) *AssemblyError {
	e := newError(code, format, args...)
	e.Kind = KindInvariant
	e.cause = pkgerrors.New(e.Message)
	return e
}

// Encoding 创建编码错误，并记录调用栈
func Encoding(code string, format string, args ...interface{}) *AssemblyError {
	e := newError(code, format, args...)
	e.Kind = KindEncoding
	e.cause = pkgerrors.New(e.Message)
	return e
}

// Wrap 用错误码包装底层错误
func Wrap(err error, code string, format string, args ...interface{}) *AssemblyError {
	e := newError(code, format, args...)
	e.cause = err
	e.Message = e.Message + ": " + err.Error()
	return e
}

// WithInstruction 附加指令位置，返回副本
func (e *AssemblyError) WithInstruction(opcode, index int) *AssemblyError {
	c := *e
	c.Opcode = opcode
	c.Instruction = index
	return &c
}

// WithEntry 附加常量池条目描述，返回副本
func (e *AssemblyError) WithEntry(desc string) *AssemblyError {
	c := *e
	c.Entry = desc
	return &c
}

// InMethod 附加类和方法名，返回副本
func (e *AssemblyError) InMethod(class, method string) *AssemblyError {
	c := *e
	c.Class = class
	c.Method = method
	return &c
}

// ============================================================================
// 辅助函数
// ============================================================================

// As 提取 AssemblyError
func As(err error) (*AssemblyError, bool) {
	var ae *AssemblyError
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsFatal 判断错误是否为实现缺陷
func IsFatal(err error) bool {
	if ae, ok := As(err); ok {
		return ae.Fatal()
	}
	return false
}

// CodeOf 返回错误码，非 AssemblyError 返回空串
func CodeOf(err error) string {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return ""
}

// Recover 在 defer 中把以 *AssemblyError 触发的 panic 转为返回值
// 其他 panic 原样继续传播
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if ae, ok := r.(*AssemblyError); ok {
		*errp = ae
		return
	}
	panic(r)
}
