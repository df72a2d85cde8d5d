package idgen

import (
	"time"

	"github.com/Songmu/flextime"
)

// DefaultDateLayout Date 组件默认布局
const DefaultDateLayout = "20060102"

// Builtin 返回预先注册了全部内置类型的注册表
//
// Seq、Segment 与 Snowflake=redis/etcd 依赖 opts 中提供的连接器，缺失时编译返回 ErrConnectorNil；
// 其余类型没有外部依赖。
func Builtin(opts ...Option) *Registry {
	o := newOptions(opts...)
	r := NewRegistry()
	registerLocal(r, o)
	r.MustRegister("Snowflake", newSnowflakeFactory(o))
	r.MustRegister("Seq", newSeqFactory(o))
	r.MustRegister("Segment", newSegmentFactory(o))
	return r
}

// Local 返回只含进程内类型的注册表，用于编译来源不可信的临时模板
//
// 不注册 Seq 与 Segment，Snowflake 只接受 static 与 ip，编译不会占用任何外部资源。
func Local(opts ...Option) *Registry {
	o := newOptions(opts...)
	r := NewRegistry()
	registerLocal(r, o)
	r.MustRegister("Snowflake", localSnowflake(newSnowflakeFactory(o)))
	return r
}

func registerLocal(r *Registry, o *options) {
	r.MustRegister("Const", newConst)
	r.MustRegister("Ref", newRef)
	r.MustRegister("Date", newDateFactory(o))
	r.MustRegister("TimeCount", newCounterFactory(o))
	r.MustRegister("UUID", newUUIDComponent)
	r.MustRegister("ULID", newULID)
	r.MustRegister("KSUID", newKSUID)
	r.MustRegister("NanoID", newNanoID)
	r.MustRegister("CUID2", newCUID2)
}

func localSnowflake(f Factory) Factory {
	return func(args []string) (Component, error) {
		if len(args) > 0 {
			switch args[0] {
			case "", "static", "ip":
			default:
				return nil, invalidArg("Snowflake", "method %q needs a shared store and is not available here", args[0])
			}
		}
		return f(args)
	}
}

type dateComponent struct {
	layout string
	loc    *time.Location
	clock  func() int64
}

// newDateFactory Date 占位符：{Date[=layout]}，默认 20060102
func newDateFactory(o *options) Factory {
	return func(args []string) (Component, error) {
		if len(args) > 1 {
			return nil, invalidArg("Date", "expects at most 1 arg, got %d", len(args))
		}
		c := &dateComponent{layout: DefaultDateLayout, loc: o.location, clock: o.clock}
		if len(args) == 1 && args[0] != "" {
			c.layout = args[0]
		}
		return c, nil
	}
}

func (c *dateComponent) Generate(*GenerationContext) (string, error) {
	now := flextime.Now()
	if c.clock != nil {
		now = time.UnixMilli(c.clock())
	}
	return now.In(c.loc).Format(c.layout), nil
}
