package errors

import (
	"fmt"
	"io"

	"go.uber.org/multierr"
)

// ============================================================================
// 错误报告器
// ============================================================================

// Reporter 收集并输出装配错误
// multierr 合并的错误会被拆开逐个报告
type Reporter struct {
	formatter *Formatter
	out       io.Writer
	err       error
	count     int
	fatal     int
}

// NewReporter 创建错误报告器，颜色按输出目标自动检测
func NewReporter(out io.Writer) *Reporter {
	f := NewFormatter()
	f.Colors = SupportsColor(out)
	return &Reporter{formatter: f, out: out}
}

// SetFormatter 设置格式化器
func (r *Reporter) SetFormatter(f *Formatter) {
	r.formatter = f
}

// Report 报告错误，nil 被忽略
func (r *Reporter) Report(err error) {
	for _, e := range multierr.Errors(err) {
		r.count++
		if IsFatal(e) {
			r.fatal++
		}
		r.err = multierr.Append(r.err, e)
		fmt.Fprint(r.out, r.formatter.Format(e))
	}
}

// Summary 输出汇总行
func (r *Reporter) Summary() {
	if r.count == 0 {
		return
	}
	line := fmt.Sprintf("%d class assembly error(s)", r.count)
	if r.fatal > 0 {
		line += fmt.Sprintf(", %d internal", r.fatal)
	}
	fmt.Fprintln(r.out, Colorize(line, ColorRed, r.formatter.Colors))
}

// ============================================================================
// 状态查询
// ============================================================================

// HasErrors 是否有错误
func (r *Reporter) HasErrors() bool {
	return r.count > 0
}

// ErrorCount 错误数量
func (r *Reporter) ErrorCount() int {
	return r.count
}

// FatalCount 实现缺陷类错误数量
func (r *Reporter) FatalCount() int {
	return r.fatal
}

// Err 返回合并后的全部错误
func (r *Reporter) Err() error {
	return r.err
}

// Clear 清空错误
func (r *Reporter) Clear() {
	r.err = nil
	r.count = 0
	r.fatal = 0
}
