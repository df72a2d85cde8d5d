package idgen

import (
	"io"

	"github.com/ceyewan/idforge/xerrors"
)

// compiled 编译结果：按顺序排列的组件与别名到下标的映射
type compiled struct {
	components []Component
	names      map[string]int
}

// compile 将节点列表编译为组件流水线
//
// 任何一步失败都会释放已经构造的可关闭组件，不返回部分结果。
func compile(nodes []Node, reg *Registry, esc string) (_ *compiled, err error) {
	c := &compiled{
		components: make([]Component, 0, len(nodes)),
		names:      make(map[string]int),
	}
	defer func() {
		if err != nil {
			closeComponents(c.components)
		}
	}()

	for _, n := range nodes {
		switch v := n.(type) {
		case LiteralNode:
			c.components = append(c.components, textComponent(v.Text))

		case PlaceholderNode:
			spec, err := parsePlaceholder(v.Raw, esc, v.Offset)
			if err != nil {
				return nil, err
			}
			factory, ok := reg.Lookup(spec.Type)
			if !ok {
				return nil, &UnknownComponentTypeError{Type: spec.Type}
			}
			comp, err := factory(spec.Args)
			if err != nil {
				return nil, xerrors.Wrapf(err, "placeholder %d (%s)", len(c.components), spec.Type)
			}
			if comp == nil {
				return nil, invalidArg(spec.Type, "factory returned nil component")
			}
			if spec.Name != "" {
				if _, dup := c.names[spec.Name]; dup {
					closeComponents([]Component{comp})
					return nil, &MalformedSpecError{Index: v.Offset, Reason: "duplicate placeholder name " + spec.Name}
				}
				c.names[spec.Name] = len(c.components)
			}
			c.components = append(c.components, comp)
		}
	}
	return c, nil
}

// closeComponents 按逆序关闭实现了 io.Closer 的组件
func closeComponents(components []Component) error {
	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		if closer, ok := components[i].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return xerrors.Combine(errs...)
}
