package idgen

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ceyewan/idforge/xerrors"
)

// NewUUIDV7 生成 UUID v7 (时间排序)，适合作为数据库主键
func NewUUIDV7() string {
	v7, _ := uuid.NewV7()
	return v7.String()
}

// NewUUIDV4 生成 UUID v4 (随机)
func NewUUIDV4() string {
	return uuid.New().String()
}

// UUID UUID 组件，默认 v7
//
// 占位符：{UUID}、{UUID=v4}、{UUID=v7,compact}，compact 去掉连字符输出 32 位十六进制。
type UUID struct {
	version string
	compact bool
}

// UUIDOption UUID 初始化选项
type UUIDOption func(*UUID)

// WithUUIDVersion 设置 UUID 版本，支持 "v4" | "v7"
func WithUUIDVersion(version string) UUIDOption {
	return func(u *UUID) {
		u.version = version
	}
}

// WithUUIDCompact 输出不含连字符的形式
func WithUUIDCompact() UUIDOption {
	return func(u *UUID) {
		u.compact = true
	}
}

// NewUUID 创建 UUID 组件
func NewUUID(opts ...UUIDOption) (*UUID, error) {
	u := &UUID{version: "v7"}
	for _, opt := range opts {
		opt(u)
	}
	if u.version != "v4" && u.version != "v7" {
		return nil, invalidArg("UUID", "unsupported version %q", u.version)
	}
	return u, nil
}

// Next 生成 UUID 字符串
func (u *UUID) Next() (string, error) {
	var (
		id  uuid.UUID
		err error
	)
	switch u.version {
	case "v4":
		id, err = uuid.NewRandom()
	default:
		id, err = uuid.NewV7()
	}
	if err != nil {
		return "", xerrors.Wrap(err, "generate uuid")
	}
	if u.compact {
		return strings.ReplaceAll(id.String(), "-", ""), nil
	}
	return id.String(), nil
}

// Generate 实现 Component
func (u *UUID) Generate(*GenerationContext) (string, error) {
	return u.Next()
}

func newUUIDComponent(args []string) (Component, error) {
	var opts []UUIDOption
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "":
		case "v4", "v7":
			opts = append(opts, WithUUIDVersion(strings.ToLower(arg)))
		case "compact":
			opts = append(opts, WithUUIDCompact())
		default:
			return nil, invalidArg("UUID", "unknown arg %q", arg)
		}
	}
	return NewUUID(opts...)
}
