package idgen

import (
	"crypto/rand"
	"strconv"
	"sync"

	"github.com/Songmu/flextime"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nrednav/cuid2"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"

	"github.com/ceyewan/idforge/xerrors"
)

const (
	// DefaultNanoIDSize NanoID 默认长度
	DefaultNanoIDSize = 21
	// DefaultNanoIDAlphabet NanoID 默认字符集 (URL 安全)
	DefaultNanoIDAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// DefaultCUID2Length CUID2 默认长度
	DefaultCUID2Length = 24
)

// ulidComponent 单调 ULID：同一毫秒内随机部分递增，实例内有序
type ulidComponent struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newULID(args []string) (Component, error) {
	if err := noArgs("ULID", args); err != nil {
		return nil, err
	}
	return &ulidComponent{entropy: ulid.Monotonic(rand.Reader, 0)}, nil
}

func (u *ulidComponent) Generate(*GenerationContext) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(flextime.Now()), u.entropy)
	if err != nil {
		return "", xerrors.Wrap(err, "generate ulid")
	}
	return id.String(), nil
}

type ksuidComponent struct{}

func newKSUID(args []string) (Component, error) {
	if err := noArgs("KSUID", args); err != nil {
		return nil, err
	}
	return ksuidComponent{}, nil
}

func (ksuidComponent) Generate(*GenerationContext) (string, error) {
	id, err := ksuid.NewRandomWithTime(flextime.Now())
	if err != nil {
		return "", xerrors.Wrap(err, "generate ksuid")
	}
	return id.String(), nil
}

type nanoIDComponent struct {
	size     int
	alphabet string
}

// newNanoID 占位符：{NanoID[=size[,alphabet]]}
func newNanoID(args []string) (Component, error) {
	c := &nanoIDComponent{size: DefaultNanoIDSize, alphabet: DefaultNanoIDAlphabet}
	if len(args) > 2 {
		return nil, invalidArg("NanoID", "expects at most 2 args, got %d", len(args))
	}
	if len(args) > 0 && args[0] != "" {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > 256 {
			return nil, invalidArg("NanoID", "size must be an integer in [1, 256], got %q", args[0])
		}
		c.size = n
	}
	if len(args) > 1 && args[1] != "" {
		if len([]rune(args[1])) < 2 {
			return nil, invalidArg("NanoID", "alphabet needs at least 2 characters")
		}
		c.alphabet = args[1]
	}
	return c, nil
}

func (c *nanoIDComponent) Generate(*GenerationContext) (string, error) {
	id, err := gonanoid.Generate(c.alphabet, c.size)
	if err != nil {
		return "", xerrors.Wrap(err, "generate nanoid")
	}
	return id, nil
}

type cuid2Component struct {
	generate func() string
}

// newCUID2 占位符：{CUID2[=length]}，长度范围 [2, 32]
func newCUID2(args []string) (Component, error) {
	length := DefaultCUID2Length
	if len(args) > 1 {
		return nil, invalidArg("CUID2", "expects at most 1 arg, got %d", len(args))
	}
	if len(args) == 1 && args[0] != "" {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 2 || n > 32 {
			return nil, invalidArg("CUID2", "length must be an integer in [2, 32], got %q", args[0])
		}
		length = n
	}
	gen, err := cuid2.Init(cuid2.WithLength(length))
	if err != nil {
		return nil, invalidArg("CUID2", "init: %v", err)
	}
	return &cuid2Component{generate: gen}, nil
}

func (c *cuid2Component) Generate(*GenerationContext) (string, error) {
	return c.generate(), nil
}

func noArgs(typ string, args []string) error {
	for _, a := range args {
		if a != "" {
			return invalidArg(typ, "takes no args, got %q", a)
		}
	}
	return nil
}
