package idgen

import (
	"fmt"
	"time"

	"github.com/ceyewan/idforge/xerrors"
)

// 错误码，可通过 xerrors.GetCode / xerrors.HasCode 判断
const (
	CodeMalformedSpec        = "malformed_spec"
	CodeUnknownComponentType = "unknown_component_type"
	CodeClockRegression      = "clock_regression"
	CodeSequenceOverflow     = "sequence_overflow"
	CodeInvalidArgument      = "invalid_argument"
)

var (
	// ErrMalformedSpec 模板中的定界符不匹配或占位符格式错误，Compile 阶段返回
	ErrMalformedSpec = xerrors.WithCode(xerrors.New("idgen: malformed spec"), CodeMalformedSpec)

	// ErrUnknownComponentType 占位符引用了注册表中不存在的类型，Compile 阶段返回
	ErrUnknownComponentType = xerrors.WithCode(xerrors.New("idgen: unknown component type"), CodeUnknownComponentType)

	// ErrClockRegression 时钟回拨，Generate 阶段返回，组件状态不变
	ErrClockRegression = xerrors.WithCode(xerrors.New("idgen: clock moved backwards"), CodeClockRegression)

	// ErrSequenceOverflow 同一毫秒内序列号耗尽，Generate 阶段返回，组件状态不变
	ErrSequenceOverflow = xerrors.WithCode(xerrors.New("idgen: sequence overflow"), CodeSequenceOverflow)

	// ErrInvalidArgument 组件参数无效
	ErrInvalidArgument = xerrors.WithCode(xerrors.ErrInvalidInput, CodeInvalidArgument)

	// ErrDuplicateType 重复注册同一类型
	ErrDuplicateType = xerrors.New("idgen: component type already registered")

	// ErrConnectorNil 组件需要的连接器未提供
	ErrConnectorNil = xerrors.New("idgen: connector is nil")

	// ErrWorkerIDExhausted WorkerID 已耗尽
	ErrWorkerIDExhausted = xerrors.New("idgen: no available worker id")

	// ErrLeaseExpired WorkerID 租约已过期
	ErrLeaseExpired = xerrors.New("idgen: lease expired")

	// ErrTemplateNotFound 模板集合中不存在该名称
	ErrTemplateNotFound = xerrors.WithCode(xerrors.ErrNotFound, "template_not_found")

	// ErrClosed 生成器已关闭
	ErrClosed = xerrors.New("idgen: generator closed")
)

// MalformedSpecError 模板解析失败，Index 为出错位置（字节偏移）
type MalformedSpecError struct {
	Index  int
	Reason string
}

func (e *MalformedSpecError) Error() string {
	return fmt.Sprintf("idgen: malformed spec at index %d: %s", e.Index, e.Reason)
}

func (e *MalformedSpecError) Unwrap() error { return ErrMalformedSpec }

// UnknownComponentTypeError 未注册的组件类型
type UnknownComponentTypeError struct {
	Type string
}

func (e *UnknownComponentTypeError) Error() string {
	return fmt.Sprintf("idgen: unknown component type %q", e.Type)
}

func (e *UnknownComponentTypeError) Unwrap() error { return ErrUnknownComponentType }

// ClockRegressionError 时钟回拨，DeltaMillis 为回拨的毫秒数
type ClockRegressionError struct {
	DeltaMillis int64
}

func (e *ClockRegressionError) Error() string {
	return fmt.Sprintf("idgen: clock moved backwards by %v", time.Duration(e.DeltaMillis)*time.Millisecond)
}

func (e *ClockRegressionError) Unwrap() error { return ErrClockRegression }

// SequenceOverflowError 序列号超出上限，Sequence 为本应分配的序列号
type SequenceOverflowError struct {
	Sequence int64
}

func (e *SequenceOverflowError) Error() string {
	return fmt.Sprintf("idgen: sequence %d overflows the per-millisecond limit", e.Sequence)
}

func (e *SequenceOverflowError) Unwrap() error { return ErrSequenceOverflow }

// invalidArg 组件工厂参数错误的统一构造
func invalidArg(typ, format string, args ...any) error {
	return xerrors.Wrapf(ErrInvalidArgument, "%s: %s", typ, fmt.Sprintf(format, args...))
}
