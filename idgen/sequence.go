package idgen

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/connector"
	"github.com/ceyewan/idforge/xerrors"
)

// SequenceConfig 序列号生成器配置
type SequenceConfig struct {
	// KeyPrefix 键前缀，默认 "idforge:seq"
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	// Step 步长，默认 1
	Step int64 `mapstructure:"step" yaml:"step"`

	// MaxValue 最大值，超过后从 Step 重新开始；0 表示不循环
	MaxValue int64 `mapstructure:"max_value" yaml:"max_value"`

	// TTL 键过期时间，0 表示永不过期
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Sequencer 基于 Redis 的按键递增序列号
type Sequencer interface {
	// Next 返回 key 的下一个序列号
	Next(ctx context.Context, key string) (int64, error)

	// NextBatch 一次性返回 count 个序列号
	NextBatch(ctx context.Context, key string, count int) ([]int64, error)
}

// redisSequencer Redis 实现的序列号生成器
type redisSequencer struct {
	redis  connector.RedisConnector
	cfg    *SequenceConfig
	logger clog.Logger
}

// NewSequencer 创建序列号生成器
//
// 使用示例:
//
//	gen, _ := idgen.NewSequencer(&idgen.SequenceConfig{
//	    KeyPrefix: "order:seq",
//	    TTL:       24 * time.Hour,
//	}, redisConn, idgen.WithLogger(logger))
//
//	seq, _ := gen.Next(ctx, "20240101") // 当天的订单序号
func NewSequencer(cfg *SequenceConfig, redis connector.RedisConnector, opts ...Option) (Sequencer, error) {
	return newSequencer(cfg, redis, newOptions(opts...))
}

func newSequencer(cfg *SequenceConfig, redis connector.RedisConnector, o *options) (*redisSequencer, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrInvalidArgument, "sequence config is nil")
	}
	if redis == nil {
		return nil, xerrors.Wrap(ErrConnectorNil, "redis connector required")
	}
	if cfg.Step <= 0 {
		cfg.Step = 1
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "idforge:seq"
	}
	if cfg.MaxValue < 0 {
		return nil, invalidArg("Seq", "max value must not be negative, got %d", cfg.MaxValue)
	}

	return &redisSequencer{
		redis:  redis,
		cfg:    cfg,
		logger: o.logger.With(clog.String("sequencer", cfg.KeyPrefix)),
	}, nil
}

// buildKey 根据键名构建完整的 Redis 键
func (r *redisSequencer) buildKey(key string) string {
	if r.cfg.KeyPrefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, key)
}

// Next 生成下一个序列号
func (r *redisSequencer) Next(ctx context.Context, key string) (int64, error) {
	redisKey := r.buildKey(key)
	client := r.redis.GetClient()
	if client == nil {
		return 0, xerrors.Wrap(ErrConnectorNil, "redis connector is not connected")
	}

	// 使用 Redis INCRBY 命令生成序列号
	result, err := client.IncrBy(ctx, redisKey, r.cfg.Step).Result()
	if err != nil {
		r.logger.Error("failed to increment sequence",
			clog.Error(err),
			clog.String("redis_key", redisKey),
			clog.String("key", key),
			clog.Int64("step", r.cfg.Step),
		)
		return 0, xerrors.Wrap(err, "redis incrby failed")
	}

	// 检查是否需要循环
	if r.cfg.MaxValue > 0 && result > r.cfg.MaxValue {
		// 重置为步长
		resetValue := r.cfg.Step
		_, err := client.Set(ctx, redisKey, resetValue, 0).Result()
		if err != nil {
			r.logger.Error("failed to reset sequence",
				clog.Error(err),
				clog.String("redis_key", redisKey),
				clog.String("key", key),
			)
			return 0, xerrors.Wrap(err, "redis reset failed")
		}
		result = resetValue
	}

	// 设置 TTL
	if r.cfg.TTL > 0 {
		ttl := r.cfg.TTL
		_, err = client.Expire(ctx, redisKey, ttl).Result()
		if err != nil {
			r.logger.Warn("failed to set ttl",
				clog.Error(err),
				clog.String("redis_key", redisKey),
				clog.String("key", key),
				clog.Duration("ttl", ttl),
			)
		}
	}

	r.logger.Debug("generated sequence number",
		clog.String("redis_key", redisKey),
		clog.String("key", key),
		clog.Int64("seq", result),
	)

	return result, nil
}

// NextBatch 批量生成序列号
func (r *redisSequencer) NextBatch(ctx context.Context, key string, count int) ([]int64, error) {
	if count <= 0 {
		return nil, xerrors.Wrapf(ErrInvalidArgument, "count must be positive, got %d", count)
	}

	redisKey := r.buildKey(key)
	client := r.redis.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(ErrConnectorNil, "redis connector is not connected")
	}

	// 计算总增量
	totalIncrement := int64(count) * r.cfg.Step

	// 使用 Redis INCRBY 命令批量增加序列号
	endSeq, err := client.IncrBy(ctx, redisKey, totalIncrement).Result()
	if err != nil {
		r.logger.Error("failed to batch increment sequence",
			clog.Error(err),
			clog.String("redis_key", redisKey),
			clog.String("key", key),
			clog.Int("count", count),
			clog.Int64("total_increment", totalIncrement),
		)
		return nil, xerrors.Wrap(err, "redis incrby failed")
	}

	// 生成序列号数组
	seqs := make([]int64, count)
	for i := 0; i < count; i++ {
		seq := endSeq - int64(count-i-1)*r.cfg.Step

		// 检查最大值限制
		if r.cfg.MaxValue > 0 && seq > r.cfg.MaxValue {
			// 如果超出最大值，重置并重新开始
			resetValue := int64(count) * r.cfg.Step
			if resetValue > r.cfg.MaxValue {
				resetValue = r.cfg.Step
			}
			_, err := client.Set(ctx, redisKey, resetValue, 0).Result()
			if err != nil {
				r.logger.Error("failed to reset sequence in batch",
					clog.Error(err),
					clog.String("redis_key", redisKey),
					clog.String("key", key),
				)
				return nil, xerrors.Wrap(err, "redis reset failed")
			}
			for j := 0; j < count; j++ {
				seqs[j] = int64(j+1) * r.cfg.Step
				if seqs[j] > r.cfg.MaxValue {
					seqs[j] = r.cfg.Step
				}
			}
			break
		}

		seqs[i] = seq
	}

	// 设置 TTL
	if r.cfg.TTL > 0 {
		ttl := r.cfg.TTL
		_, err = client.Expire(ctx, redisKey, ttl).Result()
		if err != nil {
			r.logger.Warn("failed to set ttl for batch",
				clog.Error(err),
				clog.String("redis_key", redisKey),
				clog.String("key", key),
				clog.Duration("ttl", ttl),
			)
		}
	}

	r.logger.Debug("generated sequence batch",
		clog.String("redis_key", redisKey),
		clog.String("key", key),
		clog.Int("count", count),
		clog.Int64("start_seq", seqs[0]),
		clog.Int64("end_seq", seqs[len(seqs)-1]),
	)

	return seqs, nil
}

// seqComponent Redis 序列号组件
//
// 占位符：{Seq=key[,step[,width]]}，width > 0 时左侧补零到固定宽度。
type seqComponent struct {
	seq   *redisSequencer
	key   string
	width int
}

func newSeqFactory(o *options) Factory {
	return func(args []string) (Component, error) {
		if len(args) == 0 || args[0] == "" {
			return nil, invalidArg("Seq", "key is required")
		}
		if len(args) > 3 {
			return nil, invalidArg("Seq", "expects at most 3 args, got %d", len(args))
		}
		if o.redis == nil {
			return nil, xerrors.Wrap(ErrConnectorNil, "Seq requires a redis connector")
		}

		cfg := &SequenceConfig{}
		if len(args) > 1 && args[1] != "" {
			step, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || step < 1 {
				return nil, invalidArg("Seq", "step must be a positive integer, got %q", args[1])
			}
			cfg.Step = step
		}
		width := 0
		if len(args) > 2 && args[2] != "" {
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 0 || n > 19 {
				return nil, invalidArg("Seq", "width must be an integer in [0, 19], got %q", args[2])
			}
			width = n
		}

		seq, err := newSequencer(cfg, o.redis, o)
		if err != nil {
			return nil, err
		}
		return &seqComponent{seq: seq, key: args[0], width: width}, nil
	}
}

func (c *seqComponent) Generate(gc *GenerationContext) (string, error) {
	n, err := c.seq.Next(gc.Context(), c.key)
	if err != nil {
		return "", err
	}
	return padInt(n, c.width), nil
}

// padInt 左侧补零到 width 位，超出宽度时原样输出
func padInt(n int64, width int) string {
	s := strconv.FormatInt(n, 10)
	if len(s) >= width {
		return s
	}
	return fmt.Sprintf("%0*d", width, n)
}
