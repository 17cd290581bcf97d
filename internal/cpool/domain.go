// Package cpool 实现 class 文件常量池的条目模型与装配：
// 按值去重、嵌套条目的不动点发现、三阶段排序与索引解析。
package cpool

// Domain 条目的排序域，仅用于规范排序，与 JVM 标签无关
// 枚举顺序即全局表中各域的排列顺序
type Domain int

const (
	DomainUndefined     Domain = iota // 未定义
	DomainInteger                     // int 常量
	DomainFloat                       // float 常量
	DomainString                      // String 常量
	DomainNormalUTF8                  // 普通 UTF8
	DomainLong                        // long 常量
	DomainDouble                      // double 常量
	DomainClassRef                    // 类引用
	DomainSignatureUTF8               // 签名/描述符 UTF8
	DomainNameAndType                 // 名称与类型
	DomainField                       // 字段引用
	DomainMethod                      // 方法与接口方法引用
	DomainAttributeUTF8               // 属性名 UTF8

	NumDomains
)

var domainNames = [NumDomains]string{
	"undefined", "integer", "float", "string", "utf8",
	"long", "double", "class", "signature", "nameandtype",
	"field", "method", "attribute",
}

func (d Domain) String() string {
	if d < 0 || d >= NumDomains {
		return "invalid"
	}
	return domainNames[d]
}
