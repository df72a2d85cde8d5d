package idgen

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Songmu/flextime"
)

// DefaultMaxCount 每毫秒默认可分配的序列号个数
const DefaultMaxCount int64 = 4096

// initialTimestamp 计数器尚未分配过任何值时的 last 哨兵
const initialTimestamp int64 = -1

// CounterConfig TimeCount 组件配置
type CounterConfig struct {
	// Layout Go 时间布局，应用于毫秒时间戳；为空时输出十进制毫秒数
	Layout string

	// MaxCount 每毫秒可分配的序列号个数，序列号取值 [0, MaxCount)，默认 4096
	MaxCount int64

	// Pattern printf 格式，参数依次为 (格式化后的时间戳 string, 序列号 int64)；
	// 为空时直接拼接时间戳与十进制序列号
	Pattern string
}

func (c *CounterConfig) setDefaults() {
	if c.MaxCount == 0 {
		c.MaxCount = DefaultMaxCount
	}
}

func (c *CounterConfig) validate() error {
	if c.MaxCount < 1 {
		return invalidArg("TimeCount", "maxCount must be positive, got %d", c.MaxCount)
	}
	if c.Pattern != "" {
		// 格式动词与参数类型不匹配时 fmt 会输出 %!
		if out := formatPattern(c.Pattern, "0", 0); strings.Contains(out, "%!") {
			return invalidArg("TimeCount", "pattern %q does not accept (string, int64): %s", c.Pattern, out)
		}
	}
	return nil
}

// Counter 毫秒时间戳 + 毫秒内序列号计数器
//
// 同一实例内 (timestamp, sequence) 严格递增；时钟回拨与序列号耗尽都会返回错误，
// 且不修改内部状态，调用方可以稍后重试。不同实例之间没有协调。
type Counter struct {
	mu    sync.Mutex
	last  int64
	seq   int64
	cfg   CounterConfig
	clock func() int64
	loc   *time.Location
}

// CounterOption Counter 初始化选项
type CounterOption func(*Counter)

// WithCounterClock 替换毫秒时钟
func WithCounterClock(clock func() int64) CounterOption {
	return func(c *Counter) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithCounterLocation 设置时间格式化使用的时区
func WithCounterLocation(loc *time.Location) CounterOption {
	return func(c *Counter) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// NewCounter 创建计数器
//
//	c, _ := idgen.NewCounter(idgen.CounterConfig{Layout: "20060102150405", MaxCount: 1000, Pattern: "%s%03d"})
//	id, _ := c.Generate(nil) // 20240101120000000
func NewCounter(cfg CounterConfig, opts ...CounterOption) (*Counter, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Counter{
		last:  initialTimestamp,
		cfg:   cfg,
		clock: systemMillis,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Next 分配下一个 (timestamp, sequence)
func (c *Counter) Next() (ts, seq int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	switch {
	case now < c.last:
		return 0, 0, &ClockRegressionError{DeltaMillis: c.last - now}
	case now == c.last:
		if c.seq+1 >= c.cfg.MaxCount {
			return 0, 0, &SequenceOverflowError{Sequence: c.seq + 1}
		}
		c.seq++
	default:
		c.last = now
		c.seq = 0
	}
	return c.last, c.seq, nil
}

// State 返回最近一次分配的 (timestamp, sequence)，从未分配时 timestamp 为 -1
func (c *Counter) State() (last, seq int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.seq
}

// Generate 实现 Component
func (c *Counter) Generate(*GenerationContext) (string, error) {
	ts, seq, err := c.Next()
	if err != nil {
		return "", err
	}
	return c.format(ts, seq), nil
}

func (c *Counter) format(ts, seq int64) string {
	var stamp string
	if c.cfg.Layout == "" {
		stamp = strconv.FormatInt(ts, 10)
	} else {
		stamp = time.UnixMilli(ts).In(c.loc).Format(c.cfg.Layout)
	}
	if c.cfg.Pattern == "" {
		return stamp + strconv.FormatInt(seq, 10)
	}
	return formatPattern(c.cfg.Pattern, stamp, seq)
}

// newCounterFactory TimeCount 占位符：{TimeCount[=layout[,maxCount[,pattern]]]}，空参数取默认值
func newCounterFactory(o *options) Factory {
	return func(args []string) (Component, error) {
		if len(args) > 3 {
			return nil, invalidArg("TimeCount", "expects at most 3 args, got %d", len(args))
		}
		var cfg CounterConfig
		if len(args) > 0 {
			cfg.Layout = args[0]
		}
		if len(args) > 1 && args[1] != "" {
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return nil, invalidArg("TimeCount", "maxCount %q is not an integer", args[1])
			}
			if n < 1 {
				return nil, invalidArg("TimeCount", "maxCount must be positive, got %d", n)
			}
			cfg.MaxCount = n
		}
		if len(args) > 2 {
			cfg.Pattern = args[2]
		}

		opts := []CounterOption{WithCounterLocation(o.location)}
		if o.clock != nil {
			opts = append(opts, WithCounterClock(o.clock))
		}
		return NewCounter(cfg, opts...)
	}
}

func systemMillis() int64 {
	return flextime.Now().UnixMilli()
}

func formatPattern(pattern, stamp string, seq int64) string {
	return fmt.Sprintf(pattern, stamp, seq)
}
