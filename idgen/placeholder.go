package idgen

import (
	"strings"
	"unicode/utf8"
)

// PlaceholderSpec 占位符内容解析结果：[name ':'] type ['=' args]
type PlaceholderSpec struct {
	// Name 可选别名，供 Ref 组件和日志使用
	Name string
	// Type 组件类型，在 Registry 中查找
	Type string
	// Args 以逗号分隔的参数，已去除首尾空白并解除转义；无 '=' 时为 nil
	Args []string
}

// ParsePlaceholder 使用默认转义符解析占位符的原始内容
func ParsePlaceholder(raw string) (PlaceholderSpec, error) {
	return parsePlaceholder(raw, DefaultDelimiters.Escape, 0)
}

// parsePlaceholder 先按第一个未转义的 '=' 切出参数块，再在其之前按第一个未转义的 ':' 切出别名。
// 参数块中的 ':' 不参与别名切分，因此时间布局 "15:04" 无需转义。
func parsePlaceholder(raw, esc string, offset int) (PlaceholderSpec, error) {
	var spec PlaceholderSpec

	head, argBlock, hasArgs := cutUnescaped(raw, '=', esc)
	name, typ, hasName := cutUnescaped(head, ':', esc)
	if !hasName {
		name, typ = "", head
	}

	spec.Type = strings.TrimSpace(unescape(typ, esc))
	if hasName {
		spec.Name = strings.TrimSpace(unescape(name, esc))
		if spec.Name == "" {
			return spec, &MalformedSpecError{Index: offset, Reason: "empty placeholder name before ':'"}
		}
	}
	if spec.Type == "" {
		return spec, &MalformedSpecError{Index: offset, Reason: "empty component type"}
	}

	if hasArgs {
		for _, tok := range splitUnescaped(argBlock, ',', esc) {
			spec.Args = append(spec.Args, unescape(strings.TrimSpace(tok), esc))
		}
	}
	return spec, nil
}

// cutUnescaped 在第一个未转义的 sep 处切分 s
func cutUnescaped(s string, sep byte, esc string) (before, after string, found bool) {
	if i := indexUnescaped(s, sep, esc); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

// splitUnescaped 按未转义的 sep 切分 s，至少返回一个元素
func splitUnescaped(s string, sep byte, esc string) []string {
	var parts []string
	for {
		i := indexUnescaped(s, sep, esc)
		if i < 0 {
			return append(parts, s)
		}
		parts = append(parts, s[:i])
		s = s[i+1:]
	}
}

func indexUnescaped(s string, sep byte, esc string) int {
	i := 0
	for i < len(s) {
		if strings.HasPrefix(s[i:], esc) {
			i += len(esc)
			if i < len(s) {
				_, size := utf8.DecodeRuneInString(s[i:])
				i += size
			}
			continue
		}
		if s[i] == sep {
			return i
		}
		i++
	}
	return -1
}

// unescape 解除转义：转义符加下一个字符输出该字符，末尾孤立的转义符原样保留
func unescape(s, esc string) string {
	if !strings.Contains(s, esc) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if strings.HasPrefix(s[i:], esc) {
			j := i + len(esc)
			if j >= len(s) {
				b.WriteString(esc)
				break
			}
			if strings.HasPrefix(s[j:], esc) {
				b.WriteString(esc)
				i = j + len(esc)
				continue
			}
			_, size := utf8.DecodeRuneInString(s[j:])
			b.WriteString(s[j : j+size])
			i = j + size
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
