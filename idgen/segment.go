package idgen

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/trace"
	"github.com/ceyewan/idforge/xerrors"
)

// DefaultSegmentStep 号段默认步长
const DefaultSegmentStep int64 = 1000

// LeafAlloc 号段表，每个业务标签一行，max_id 为已分配出去的最大值
type LeafAlloc struct {
	BizTag    string `gorm:"primaryKey;size:128"`
	MaxID     int64  `gorm:"not null;default:0"`
	Step      int64  `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (LeafAlloc) TableName() string {
	return "idgen_leaf_alloc"
}

// SegmentAllocator 数据库号段分配器
//
// 每次从数据库取出 step 个连续 ID 缓存在内存中，用完再取；
// 多个进程共享同一张表时 ID 全局唯一，但不保证跨进程有序。
type SegmentAllocator struct {
	db     *gorm.DB
	bizTag string
	step   int64
	logger clog.Logger

	mu  sync.Mutex
	cur int64
	max int64
}

// NewSegmentAllocator 创建号段分配器，并确保号段表存在
func NewSegmentAllocator(ctx context.Context, db *gorm.DB, bizTag string, step int64, opts ...Option) (*SegmentAllocator, error) {
	return newSegmentAllocator(ctx, db, bizTag, step, newOptions(opts...))
}

func newSegmentAllocator(ctx context.Context, db *gorm.DB, bizTag string, step int64, o *options) (*SegmentAllocator, error) {
	if db == nil {
		return nil, xerrors.Wrap(ErrConnectorNil, "segment allocator requires a database")
	}
	if bizTag == "" {
		return nil, invalidArg("Segment", "biz tag is required")
	}
	if step == 0 {
		step = DefaultSegmentStep
	}
	if step < 1 {
		return nil, invalidArg("Segment", "step must be positive, got %d", step)
	}
	if err := db.WithContext(ctx).AutoMigrate(&LeafAlloc{}); err != nil {
		return nil, xerrors.Wrap(err, "migrate segment table")
	}
	return &SegmentAllocator{
		db:     db,
		bizTag: bizTag,
		step:   step,
		logger: o.logger.With(clog.String("biz_tag", bizTag)),
	}, nil
}

// Next 返回下一个 ID，从 1 开始
func (a *SegmentAllocator) Next(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cur >= a.max {
		if err := a.fetch(ctx); err != nil {
			return 0, err
		}
	}
	a.cur++
	return a.cur, nil
}

// fetch 在事务内推进 max_id 并取回新号段 (max_id-step, max_id]
func (a *SegmentAllocator) fetch(ctx context.Context) (err error) {
	ctx, span := trace.Start(ctx, "idgen.segment.fetch",
		attribute.String("idgen.biz_tag", a.bizTag),
		attribute.Int64("idgen.step", a.step),
	)
	defer func() { trace.End(span, err) }()

	var row LeafAlloc
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := LeafAlloc{BizTag: a.bizTag, Step: a.step}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		res := tx.Model(&LeafAlloc{}).
			Where("biz_tag = ?", a.bizTag).
			Updates(map[string]any{
				"max_id":     gorm.Expr("max_id + ?", a.step),
				"step":       a.step,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		return tx.Where("biz_tag = ?", a.bizTag).First(&row).Error
	})
	if err != nil {
		a.logger.Error("fetch segment failed", clog.Error(err))
		return xerrors.Wrapf(err, "fetch segment for %s", a.bizTag)
	}

	a.cur = row.MaxID - a.step
	a.max = row.MaxID
	a.logger.Debug("segment fetched",
		clog.Int64("from", a.cur+1),
		clog.Int64("to", a.max),
	)
	return nil
}

type segmentComponent struct {
	alloc *SegmentAllocator
	width int
}

// newSegmentFactory Segment 占位符：{Segment=bizTag[,step[,width]]}
func newSegmentFactory(o *options) Factory {
	return func(args []string) (Component, error) {
		if len(args) == 0 || args[0] == "" {
			return nil, invalidArg("Segment", "biz tag is required")
		}
		if len(args) > 3 {
			return nil, invalidArg("Segment", "expects at most 3 args, got %d", len(args))
		}
		if o.db == nil || o.db.GetClient() == nil {
			return nil, xerrors.Wrap(ErrConnectorNil, "Segment requires a database connector")
		}

		var step int64
		if len(args) > 1 && args[1] != "" {
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || n < 1 {
				return nil, invalidArg("Segment", "step must be a positive integer, got %q", args[1])
			}
			step = n
		}
		width := 0
		if len(args) > 2 && args[2] != "" {
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 0 || n > 19 {
				return nil, invalidArg("Segment", "width must be an integer in [0, 19], got %q", args[2])
			}
			width = n
		}

		ctx, cancel := context.WithTimeout(context.Background(), allocateTimeout)
		defer cancel()
		alloc, err := newSegmentAllocator(ctx, o.db.GetClient(), args[0], step, o)
		if err != nil {
			return nil, err
		}
		return &segmentComponent{alloc: alloc, width: width}, nil
	}
}

func (c *segmentComponent) Generate(gc *GenerationContext) (string, error) {
	n, err := c.alloc.Next(gc.Context())
	if err != nil {
		return "", err
	}
	return padInt(n, c.width), nil
}
