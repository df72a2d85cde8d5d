package idgen

import (
	"sort"
	"sync"

	"github.com/ceyewan/idforge/xerrors"
)

// Factory 根据占位符参数构造组件，参数无效时返回错误
type Factory func(args []string) (Component, error)

// Registry 组件类型注册表
//
// 通常在启动阶段填充，之后只读；Lookup 只持有读锁。
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry 创建空注册表，需要内置类型时使用 Builtin
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register 注册组件类型，类型名为空、工厂为 nil 或重复注册时返回错误
func (r *Registry) Register(typeName string, factory Factory) error {
	if typeName == "" {
		return xerrors.Wrap(ErrInvalidArgument, "empty component type name")
	}
	if factory == nil {
		return xerrors.Wrapf(ErrInvalidArgument, "nil factory for %q", typeName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[typeName]; ok {
		return xerrors.Wrapf(ErrDuplicateType, "%q", typeName)
	}
	r.factories[typeName] = factory
	return nil
}

// MustRegister 同 Register，失败时 panic
func (r *Registry) MustRegister(typeName string, factory Factory) {
	if err := r.Register(typeName, factory); err != nil {
		panic(err)
	}
}

// Lookup 查找组件工厂
func (r *Registry) Lookup(typeName string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[typeName]
	return f, ok
}

// Types 返回已注册的类型名，按字典序排列
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
