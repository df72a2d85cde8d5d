package idgen

import (
	"strings"
	"unicode/utf8"
)

// Delimiters 模板的定界符与转义符，均可以是多字符
type Delimiters struct {
	Open   string
	Close  string
	Escape string
}

// DefaultDelimiters 默认定界符：{ } 与反斜杠转义
var DefaultDelimiters = Delimiters{Open: "{", Close: "}", Escape: `\`}

func (d Delimiters) validate() error {
	if d.Open == "" || d.Close == "" || d.Escape == "" {
		return invalidArg("delimiters", "open, close and escape must be non-empty")
	}
	if d.Open == d.Escape || d.Close == d.Escape {
		return invalidArg("delimiters", "escape %q must differ from the delimiters", d.Escape)
	}
	return nil
}

// Node 模板解析后的节点：LiteralNode 或 PlaceholderNode
type Node interface {
	node()
}

// LiteralNode 字面文本，转义已被解除
type LiteralNode struct {
	Text string
}

// PlaceholderNode 未解析的占位符，Raw 保留原始转义，Offset 为开定界符的位置
type PlaceholderNode struct {
	Raw    string
	Offset int
}

func (LiteralNode) node()     {}
func (PlaceholderNode) node() {}

// Parse 使用默认定界符解析模板
func Parse(spec string) ([]Node, error) {
	return ParseWith(spec, DefaultDelimiters)
}

// ParseWith 使用自定义定界符解析模板
//
// 规则：
//   - 转义符加上紧随的字符（或完整的定界符）按字面输出，末尾孤立的转义符原样保留
//   - 未转义的开定界符开始一个占位符，直到第一个未转义的闭定界符
//   - 找不到闭定界符时返回 MalformedSpecError，Index 为开定界符的位置
//   - 空占位符（开定界符后紧跟闭定界符）按字面文本输出
//   - 字面文本中未配对的闭定界符按字面输出
func ParseWith(spec string, d Delimiters) ([]Node, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	var (
		nodes []Node
		lit   strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			nodes = append(nodes, LiteralNode{Text: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(spec) {
		switch {
		case strings.HasPrefix(spec[i:], d.Escape):
			j := i + len(d.Escape)
			if j >= len(spec) {
				lit.WriteString(d.Escape)
				i = j
				continue
			}
			tok := escapedToken(spec, j, d)
			lit.WriteString(tok)
			i = j + len(tok)

		case strings.HasPrefix(spec[i:], d.Open):
			start := i
			contentStart := i + len(d.Open)
			end := findClose(spec, contentStart, d)
			if end < 0 {
				return nil, &MalformedSpecError{Index: start, Reason: "unclosed placeholder"}
			}
			raw := spec[contentStart:end]
			i = end + len(d.Close)
			if raw == "" {
				lit.WriteString(d.Open)
				lit.WriteString(d.Close)
				continue
			}
			flush()
			nodes = append(nodes, PlaceholderNode{Raw: raw, Offset: start})

		default:
			_, size := utf8.DecodeRuneInString(spec[i:])
			lit.WriteString(spec[i : i+size])
			i += size
		}
	}
	flush()

	return nodes, nil
}

// escapedToken 返回位置 j 处被转义的单元：完整的定界符/转义符，否则为一个字符
func escapedToken(s string, j int, d Delimiters) string {
	for _, tok := range [...]string{d.Open, d.Close, d.Escape} {
		if strings.HasPrefix(s[j:], tok) {
			return tok
		}
	}
	_, size := utf8.DecodeRuneInString(s[j:])
	return s[j : j+size]
}

// findClose 从 from 开始查找第一个未转义的闭定界符，找不到返回 -1
func findClose(s string, from int, d Delimiters) int {
	k := from
	for k < len(s) {
		if strings.HasPrefix(s[k:], d.Escape) {
			k += len(d.Escape)
			if k < len(s) {
				k += len(escapedToken(s, k, d))
			}
			continue
		}
		if strings.HasPrefix(s[k:], d.Close) {
			return k
		}
		_, size := utf8.DecodeRuneInString(s[k:])
		k += size
	}
	return -1
}

// Render 将节点列表重新渲染为文本：字面节点输出其文本，占位符以默认定界符包裹原始内容
//
// 不含占位符的模板 Render(Parse(s)) 等于去掉转义后的 s。
func Render(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch v := n.(type) {
		case LiteralNode:
			b.WriteString(v.Text)
		case PlaceholderNode:
			b.WriteString(DefaultDelimiters.Open)
			b.WriteString(v.Raw)
			b.WriteString(DefaultDelimiters.Close)
		}
	}
	return b.String()
}
