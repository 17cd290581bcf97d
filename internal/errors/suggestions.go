package errors

// ============================================================================
// 修复建议
// ============================================================================

var suggestions = map[string][]string{
	P0001: {
		"the operand bands hold fewer values than the opcode stream consumes",
		"check that every band was read with the count the segment header declares",
	},
	P0002: {"a class file can address at most 65535 constant-pool slots"},
	P0003: {"add the entry (or the entry that nests it) to the pool before Resolve"},
	P0004: {"invokedynamic and opcodes above jsr_w are not supported"},
	P0005: {
		"ldc takes Integer, Float, String or Class; use ldc2_w for Long and Double",
		"ConstantValue must match the field type: Integer, Float, Long, Double or String",
	},
	P0006: {
		"only 255 slots can be reached by ldc",
		"split the class or use ldc_w for constants that do not need a single-byte index",
	},
	P0007: {"split the method or class so it fits the class-file u2/u4 limits"},
	P0008: {"labels count instructions from the branching instruction; the target must exist"},
	P0009: {"build attributes, methods and instructions once per class; only constants may be shared"},
	P0101: {"an entry created a new pool entry inside Resolve; register it through NestedEntries instead"},
	P0103: {
		"constants other than Utf8 and Class need a global index in strict mode",
		"assemble through a sealed global table or disable strict ordering",
	},
}

// GetSuggestions 根据错误码获取修复建议
func GetSuggestions(code string) []string {
	return suggestions[code]
}
