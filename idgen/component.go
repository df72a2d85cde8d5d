package idgen

import (
	"context"
	"strings"
)

// Component 生成流水线中的一个单元，每次 Generate 返回一段文本
//
// 持有外部资源（如 WorkerID 租约）的组件可以额外实现 io.Closer，
// Generator.Close 会负责释放。
type Component interface {
	Generate(gc *GenerationContext) (string, error)
}

// ComponentFunc 函数适配器
type ComponentFunc func(gc *GenerationContext) (string, error)

// Generate 实现 Component
func (f ComponentFunc) Generate(gc *GenerationContext) (string, error) {
	return f(gc)
}

// GenerationContext 单次生成的上下文，按顺序记录已经执行的组件输出
//
// 每次 Generate 新建，结束后丢弃，不在调用之间共享。
type GenerationContext struct {
	ctx    context.Context
	index  int
	values []string
	names  map[string]int
}

func newGenerationContext(ctx context.Context, size int, names map[string]int) *GenerationContext {
	return &GenerationContext{
		ctx:    ctx,
		values: make([]string, 0, size),
		names:  names,
	}
}

// Context 返回调用方传入的 context
func (gc *GenerationContext) Context() context.Context {
	return gc.ctx
}

// Index 当前正在执行的组件下标
func (gc *GenerationContext) Index() int {
	return gc.index
}

// Value 返回第 i 个组件的输出，尚未执行时返回 false
func (gc *GenerationContext) Value(i int) (string, bool) {
	if i < 0 || i >= len(gc.values) {
		return "", false
	}
	return gc.values[i], true
}

// Named 按占位符别名读取已执行组件的输出
func (gc *GenerationContext) Named(name string) (string, bool) {
	i, ok := gc.names[name]
	if !ok {
		return "", false
	}
	return gc.Value(i)
}

// Values 返回已执行组件输出的副本
func (gc *GenerationContext) Values() []string {
	return append([]string(nil), gc.values...)
}

func (gc *GenerationContext) record(v string) {
	gc.values = append(gc.values, v)
	gc.index++
}

// textComponent 字面文本，字面节点与 Const 占位符都编译为它
type textComponent string

func (t textComponent) Generate(*GenerationContext) (string, error) {
	return string(t), nil
}

func newConst(args []string) (Component, error) {
	return textComponent(strings.Join(args, ",")), nil
}

// refComponent 引用前面某个带别名的组件输出
type refComponent struct {
	name string
}

func newRef(args []string) (Component, error) {
	if len(args) != 1 || args[0] == "" {
		return nil, invalidArg("Ref", "expects exactly one alias name")
	}
	return &refComponent{name: args[0]}, nil
}

func (r *refComponent) Generate(gc *GenerationContext) (string, error) {
	v, ok := gc.Named(r.name)
	if !ok {
		return "", invalidArg("Ref", "alias %q is not defined before index %d", r.name, gc.Index())
	}
	return v, nil
}
