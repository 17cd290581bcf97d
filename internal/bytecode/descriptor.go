package bytecode

import (
	perrors "github.com/tangzhangming/pack200/internal/errors"
)

// ArgumentSlots 返回方法描述符中参数占用的局部变量槽位数
// long/double 占两个槽位
func ArgumentSlots(descriptor string) (int, error) {
	if len(descriptor) == 0 || descriptor[0] != '(' {
		return 0, perrors.Malformed(perrors.P0005, "bad method descriptor %q", descriptor)
	}
	slots := 0
	i := 1
	for i < len(descriptor) && descriptor[i] != ')' {
		width := 1
		start := i
		for i < len(descriptor) && descriptor[i] == '[' {
			i++
		}
		if i >= len(descriptor) {
			break
		}
		switch descriptor[i] {
		case 'J', 'D':
			if i == start {
				width = 2
			}
			i++
		case 'B', 'C', 'F', 'I', 'S', 'Z':
			i++
		case 'L':
			for i < len(descriptor) && descriptor[i] != ';' {
				i++
			}
			if i >= len(descriptor) {
				return 0, perrors.Malformed(perrors.P0005, "unterminated class name in %q", descriptor)
			}
			i++
		default:
			return 0, perrors.Malformed(perrors.P0005, "bad type %q in descriptor %q", descriptor[i], descriptor)
		}
		slots += width
	}
	if i >= len(descriptor) {
		return 0, perrors.Malformed(perrors.P0005, "unterminated method descriptor %q", descriptor)
	}
	return slots, nil
}
