// Package errors 定义 class 文件装配过程中的错误分类与错误码
package errors

// ============================================================================
// 错误类别
// ============================================================================

// Kind 错误类别
type Kind int

const (
	KindMalformed Kind = iota // 输入数据错误，只中止当前 class 的装配
	KindInvariant             // 内部不变量被破坏，属于实现缺陷
	KindEncoding              // 布局/编码不一致，属于两遍布局的缺陷
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindInvariant:
		return "invariant"
	case KindEncoding:
		return "encoding"
	default:
		return "unknown"
	}
}

// ============================================================================
// 错误码
// ============================================================================

const (
	// P0001-P0099: 输入错误
	P0001 = "P0001" // 操作数源耗尽
	P0002 = "P0002" // 索引超出 class 文件范围
	P0003 = "P0003" // 引用了未加入常量池的条目
	P0004 = "P0004" // 未知或不支持的操作码
	P0005 = "P0005" // 操作数取值非法
	P0006 = "P0006" // 单字节引用条目过多
	P0007 = "P0007" // 超出 class 文件上限
	P0008 = "P0008" // 跳转目标越界
	P0009 = "P0009" // 辅助条目被多个 class 共用

	// P0100-P0199: 不变量破坏
	P0100 = "P0100" // 常量池尚未解析
	P0101 = "P0101" // 第二遍解析引入了新条目
	P0102 = "P0102" // 不相等的条目键冲突
	P0103 = "P0103" // 无法排序的条目
	P0104 = "P0104" // 条目解析前读取索引

	// P0200-P0299: 编码错误
	P0200 = "P0200" // switch 填充与偏移表不一致
	P0201 = "P0201" // 指令长度与布局不一致
)

// ErrorInfo 错误码信息
type ErrorInfo struct {
	Code     string // 错误码
	Kind     Kind   // 错误类别
	Category string // 错误分类
	Summary  string // 简述
}

var codeTable = map[string]ErrorInfo{
	P0001: {P0001, KindMalformed, "operand", "operand source exhausted"},
	P0002: {P0002, KindMalformed, "index", "index out of class-file range"},
	P0003: {P0003, KindMalformed, "pool", "entry not present in constant pool"},
	P0004: {P0004, KindMalformed, "opcode", "unknown or unsupported opcode"},
	P0005: {P0005, KindMalformed, "operand", "illegal operand value"},
	P0006: {P0006, KindMalformed, "pool", "too many single-byte referenced entries"},
	P0007: {P0007, KindMalformed, "limit", "class-file limit exceeded"},
	P0008: {P0008, KindMalformed, "label", "branch target out of range"},
	P0009: {P0009, KindMalformed, "entry", "auxiliary entry shared between classes"},

	P0100: {P0100, KindInvariant, "pool", "constant pool not resolved"},
	P0101: {P0101, KindInvariant, "pool", "re-resolution discovered new entries"},
	P0102: {P0102, KindInvariant, "pool", "non-equal entries share a key"},
	P0103: {P0103, KindInvariant, "pool", "entry cannot be placed by the initial sort"},
	P0104: {P0104, KindInvariant, "entry", "index read before resolution"},

	P0200: {P0200, KindEncoding, "layout", "switch padding disagrees with offsets"},
	P0201: {P0201, KindEncoding, "layout", "instruction length disagrees with layout"},
}

// GetErrorInfo 获取错误码信息
func GetErrorInfo(code string) (ErrorInfo, bool) {
	info, ok := codeTable[code]
	return info, ok
}

// KindOf 返回错误码所属类别，未知错误码视为输入错误
func KindOf(code string) Kind {
	if info, ok := codeTable[code]; ok {
		return info.Kind
	}
	return KindMalformed
}
