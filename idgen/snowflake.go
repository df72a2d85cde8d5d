package idgen

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Songmu/flextime"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/xerrors"
)

const (
	// maxClockBackwards 最大容忍的时钟回拨时间 (1秒)
	maxClockBackwards = 1000 * time.Millisecond
	// smallClockBackwards 微小回拨阈值 (5ms)，在此范围内尝试复用 lastTime
	smallClockBackwards = 5 * time.Millisecond

	maxSnowflakeSequence = 0xFFF
	maxWorkerID          = 1023
	maxWorkerIDWithDC    = 31
	maxDatacenterID      = 31

	allocateTimeout = 5 * time.Second
)

// Snowflake 雪花算法组件
//
// 位结构 (41+10+12)：41bit 毫秒时间戳 + 5bit datacenterID + 5bit workerID + 12bit 序列号。
// 未使用 datacenterID 时 workerID 可占满 10bit。
type Snowflake struct {
	mu       sync.Mutex
	workerID int64
	dcID     int64
	sequence int64
	lastTime int64
	logger   clog.Logger

	// 分布式分配 WorkerID 时持有的租约
	allocator Allocator
	cancel    context.CancelFunc
	leaseLost atomic.Bool
	closeOnce sync.Once
}

// SnowflakeOption Snowflake 初始化选项
type SnowflakeOption func(*Snowflake)

// WithSnowflakeLogger 设置 Logger
func WithSnowflakeLogger(logger clog.Logger) SnowflakeOption {
	return func(s *Snowflake) {
		s.logger = logger
	}
}

// WithDatacenterID 设置数据中心 ID [0, 31]
func WithDatacenterID(dcID int64) SnowflakeOption {
	return func(s *Snowflake) {
		s.dcID = dcID
	}
}

// NewSnowflake 创建 Snowflake 组件
//
// 参数:
//   - workerID: 工作节点 ID，未设置 DatacenterID 时范围 [0, 1023]，否则 [0, 31]
//   - opts: 可选参数 (DatacenterID, Logger)
//
// 使用示例:
//
//	sf, _ := idgen.NewSnowflake(1, idgen.WithDatacenterID(2))
//	id, _ := sf.NextInt64()
func NewSnowflake(workerID int64, opts ...SnowflakeOption) (*Snowflake, error) {
	sf := &Snowflake{
		workerID: workerID,
		lastTime: -1,
	}
	for _, opt := range opts {
		opt(sf)
	}

	if sf.dcID < 0 || sf.dcID > maxDatacenterID {
		return nil, invalidArg("Snowflake", "datacenter id %d out of range [0, %d]", sf.dcID, maxDatacenterID)
	}
	// 使用了 DatacenterID 时 WorkerID 只有 5 bit
	if sf.dcID > 0 && (workerID < 0 || workerID > maxWorkerIDWithDC) {
		return nil, invalidArg("Snowflake", "worker id %d out of range [0, %d] with datacenter id", workerID, maxWorkerIDWithDC)
	}
	if workerID < 0 || workerID > maxWorkerID {
		return nil, invalidArg("Snowflake", "worker id %d out of range [0, %d]", workerID, maxWorkerID)
	}

	if sf.logger == nil {
		sf.logger = clog.Discard()
	}
	sf.logger.Info("snowflake generator created",
		clog.Int64("worker_id", workerID),
		clog.Int64("datacenter_id", sf.dcID),
	)
	return sf, nil
}

// WorkerID 返回当前使用的 WorkerID
func (s *Snowflake) WorkerID() int64 {
	return s.workerID
}

// NextInt64 生成 int64 ID
func (s *Snowflake) NextInt64() (int64, error) {
	if s.leaseLost.Load() {
		return 0, xerrors.Wrapf(ErrLeaseExpired, "worker id %d", s.workerID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := flextime.Now().UnixMilli()

	if now < s.lastTime {
		drift := time.Duration(s.lastTime-now) * time.Millisecond

		switch {
		case drift <= smallClockBackwards:
			// 微小回拨：序列号未满时复用 lastTime
			if s.sequence < maxSnowflakeSequence {
				now = s.lastTime
			} else {
				flextime.Sleep(drift + time.Millisecond)
				now = flextime.Now().UnixMilli()
			}
		case drift <= maxClockBackwards:
			flextime.Sleep(drift + time.Millisecond)
			now = flextime.Now().UnixMilli()
		default:
			s.logger.Error("clock moved backwards",
				clog.Duration("drift", drift),
				clog.Int64("worker_id", s.workerID),
			)
			return 0, &ClockRegressionError{DeltaMillis: s.lastTime - now}
		}
		if now < s.lastTime {
			return 0, &ClockRegressionError{DeltaMillis: s.lastTime - now}
		}
	}

	if now == s.lastTime {
		s.sequence = (s.sequence + 1) & maxSnowflakeSequence
		if s.sequence == 0 {
			// 序列号溢出，等待下一毫秒
			for now <= s.lastTime {
				flextime.Sleep(time.Millisecond)
				now = flextime.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.lastTime = now

	return (now << 22) | (s.dcID << 17) | (s.workerID << 12) | s.sequence, nil
}

// Generate 实现 Component，输出十进制 ID
func (s *Snowflake) Generate(*GenerationContext) (string, error) {
	id, err := s.NextInt64()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// Close 停止租约保活并释放 WorkerID，静态 WorkerID 时为空操作
func (s *Snowflake) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.allocator != nil {
			s.allocator.Stop()
		}
	})
	return nil
}

var _ io.Closer = (*Snowflake)(nil)

// attachAllocator 绑定 WorkerID 租约，保活失败后后续生成返回 ErrLeaseExpired
func (s *Snowflake) attachAllocator(a Allocator) {
	ctx, cancel := context.WithCancel(context.Background())
	s.allocator = a
	s.cancel = cancel
	errCh := a.KeepAlive(ctx)
	go func() {
		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				s.leaseLost.Store(true)
				s.logger.Error("worker id lease lost, snowflake disabled",
					clog.Error(err),
					clog.Int64("worker_id", s.workerID),
				)
			}
		}
	}()
}

// newSnowflakeFactory Snowflake 占位符：{Snowflake[=method[,workerID[,datacenterID]]]}
//
// method:
//   - static (默认): 使用 workerID 参数
//   - ip: 取本机第一个非回环 IPv4 地址的低位作为 workerID
//   - redis / etcd: 通过 Allocator 抢占 WorkerID 并自动保活，workerID 参数表示 MaxID
func newSnowflakeFactory(o *options) Factory {
	return func(args []string) (Component, error) {
		if len(args) > 3 {
			return nil, invalidArg("Snowflake", "expects at most 3 args, got %d", len(args))
		}
		method := "static"
		if len(args) > 0 && args[0] != "" {
			method = args[0]
		}
		var second, dcID int64
		var err error
		if len(args) > 1 && args[1] != "" {
			if second, err = strconv.ParseInt(args[1], 10, 64); err != nil {
				return nil, invalidArg("Snowflake", "worker id %q is not an integer", args[1])
			}
		}
		if len(args) > 2 && args[2] != "" {
			if dcID, err = strconv.ParseInt(args[2], 10, 64); err != nil {
				return nil, invalidArg("Snowflake", "datacenter id %q is not an integer", args[2])
			}
		}

		sfOpts := []SnowflakeOption{WithDatacenterID(dcID), WithSnowflakeLogger(o.logger)}
		limit := int64(maxWorkerID)
		if dcID > 0 {
			limit = maxWorkerIDWithDC
		}

		switch method {
		case "static":
			return NewSnowflake(second, sfOpts...)

		case "ip":
			addrs, err := net.InterfaceAddrs()
			if err != nil {
				return nil, xerrors.Wrap(err, "list interface addrs")
			}
			workerID, err := workerIDFromAddrs(addrs, limit)
			if err != nil {
				return nil, err
			}
			return NewSnowflake(workerID, sfOpts...)

		case "redis", "etcd":
			cfg := &AllocatorConfig{Driver: method, MaxID: int(limit + 1)}
			if second > 0 {
				cfg.MaxID = int(second)
			}
			alloc, err := newAllocator(cfg, o)
			if err != nil {
				return nil, err
			}
			ctx, cancel := context.WithTimeout(context.Background(), allocateTimeout)
			defer cancel()
			workerID, err := alloc.Allocate(ctx)
			if err != nil {
				alloc.Stop()
				return nil, err
			}
			sf, err := NewSnowflake(workerID, sfOpts...)
			if err != nil {
				alloc.Stop()
				return nil, err
			}
			sf.attachAllocator(alloc)
			return sf, nil

		default:
			return nil, invalidArg("Snowflake", "unknown method %q", method)
		}
	}
}

// workerIDFromAddrs 取第一个非回环 IPv4 地址的低位，limit 为最大 WorkerID
func workerIDFromAddrs(addrs []net.Addr, limit int64) (int64, error) {
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		low := int64(ip4[2])<<8 | int64(ip4[3])
		return low & limit, nil
	}
	return 0, xerrors.Wrap(ErrWorkerIDExhausted, "no non-loopback ipv4 address")
}
