// Package jvmgen 定义 JVM class 文件的基础词汇：常量池标签、访问标志、
// 操作码表、大端序写入器以及一个用于校验输出的参考读取器。
package jvmgen

// Class 文件常量
const (
	ClassFileMagic    = 0xCAFEBABE
	ClassMajorVersion = 52 // Java 8
	ClassMinorVersion = 0
)

// 常量池标签
const (
	ConstantUtf8               = 1
	ConstantInteger            = 3
	ConstantFloat              = 4
	ConstantLong               = 5
	ConstantDouble             = 6
	ConstantClass              = 7
	ConstantString             = 8
	ConstantFieldref           = 9
	ConstantMethodref          = 10
	ConstantInterfaceMethodref = 11
	ConstantNameAndType        = 12
)

// 常量池与方法体的硬性上限
const (
	MaxPoolSlots     = 65535 // constant_pool_count 为 u2
	MaxSingleByteRef = 255   // ldc 只有一个字节的索引
	MaxCodeLength    = 65535
	MaxUtf8Length    = 65535 // CONSTANT_Utf8 的长度字段为 u2
)

// 访问标志
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccTransient    = 0x0080
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
)

// 属性名
const (
	AttrCode                                 = "Code"
	AttrConstantValue                        = "ConstantValue"
	AttrDeprecated                           = "Deprecated"
	AttrExceptions                           = "Exceptions"
	AttrLineNumberTable                      = "LineNumberTable"
	AttrSignature                            = "Signature"
	AttrSourceFile                           = "SourceFile"
	AttrSynthetic                            = "Synthetic"
	AttrRuntimeVisibleAnnotations            = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations          = "RuntimeInvisibleAnnotations"
	AttrRuntimeVisibleParameterAnnotations   = "RuntimeVisibleParameterAnnotations"
	AttrRuntimeInvisibleParameterAnnotations = "RuntimeInvisibleParameterAnnotations"
	AttrAnnotationDefault                    = "AnnotationDefault"
)

// TagName 返回常量池标签名
func TagName(tag uint8) string {
	switch tag {
	case ConstantUtf8:
		return "Utf8"
	case ConstantInteger:
		return "Integer"
	case ConstantFloat:
		return "Float"
	case ConstantLong:
		return "Long"
	case ConstantDouble:
		return "Double"
	case ConstantClass:
		return "Class"
	case ConstantString:
		return "String"
	case ConstantFieldref:
		return "Fieldref"
	case ConstantMethodref:
		return "Methodref"
	case ConstantInterfaceMethodref:
		return "InterfaceMethodref"
	case ConstantNameAndType:
		return "NameAndType"
	default:
		return "Unknown"
	}
}
