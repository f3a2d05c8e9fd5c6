package hlc

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSkew порог, после которого удаленная метка считается
// подозрительно опережающей локальные часы.
const DefaultMaxSkew = 5 * time.Minute

// SkewWarning описывает удаленную метку, опережающую локальное время
// больше чем на MaxSkew. Не является ошибкой: часы продолжают работу.
type SkewWarning struct {
	Remote    Timestamp
	LocalWall time.Time
	Skew      time.Duration
}

// Clock представляет гибридные логические часы одного узла.
// Экземпляр передается явно во все компоненты, которые ставят метки.
type Clock struct {
	wall     func() time.Time
	onSkew   func(SkewWarning)
	logger   *slog.Logger
	nodeID   string
	maxSkew  time.Duration
	physical int64      // последнее выданное или наблюдаемое физическое время
	logical  uint32     // логический счетчик для physical
	mu       sync.Mutex // мьютекс для потокобезопасности
}

// Option настраивает Clock.
type Option func(*Clock)

// WithWallClock подменяет источник физического времени (для тестов).
func WithWallClock(wall func() time.Time) Option {
	return func(c *Clock) {
		c.wall = wall
	}
}

// WithMaxSkew задает порог для SkewWarning.
func WithMaxSkew(d time.Duration) Option {
	return func(c *Clock) {
		c.maxSkew = d
	}
}

// WithLogger задает логгер для предупреждений о рассинхронизации.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Clock) {
		c.logger = logger
	}
}

// WithSkewHook вызывается на каждое SkewWarning (помимо записи в лог).
func WithSkewHook(fn func(SkewWarning)) Option {
	return func(c *Clock) {
		c.onSkew = fn
	}
}

// NewClock создает часы со случайным идентификатором узла (UUID).
func NewClock(opts ...Option) *Clock {
	return NewClockWithNodeID(uuid.New().String(), opts...)
}

// NewClockWithNodeID создает часы с заданным идентификатором узла.
func NewClockWithNodeID(nodeID string, opts ...Option) *Clock {
	c := &Clock{
		nodeID:  nodeID,
		wall:    time.Now,
		maxSkew: DefaultMaxSkew,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NodeID возвращает идентификатор узла.
func (c *Clock) NodeID() string {
	return c.nodeID
}

// Now возвращает новую метку, строго большую любой ранее выданной
// или наблюдаемой этим узлом. Если физическое время не продвинулось
// (или ушло назад), увеличивается логический счетчик.
func (c *Clock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := c.wall().UnixMilli()
	if wall > c.physical {
		c.physical = wall
		c.logical = 0
	} else {
		c.physical, c.logical = next(c.physical, c.logical)
	}

	return c.current()
}

// Observe продвигает часы так, чтобы любой будущий Now() был больше remote.
// physical = max(local, remote, wall); логический счетчик увеличивается,
// когда физическое время не продвинулось.
func (c *Clock) Observe(remote Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.wall()
	wall := now.UnixMilli()

	if skew := time.Duration(remote.PhysicalTimeMs-wall) * time.Millisecond; c.maxSkew > 0 && skew > c.maxSkew {
		warning := SkewWarning{Remote: remote, LocalWall: now, Skew: skew}
		c.logger.Warn("Remote clock is ahead of local wall clock",
			"remote", remote.String(),
			"remote_node", remote.NodeID,
			"skew", skew.String(),
			"max_skew", c.maxSkew.String())
		if c.onSkew != nil {
			c.onSkew(warning)
		}
	}

	physical := max(c.physical, remote.PhysicalTimeMs, wall)

	switch {
	case physical == c.physical && physical == remote.PhysicalTimeMs:
		c.physical, c.logical = next(physical, max(c.logical, remote.LogicalCounter))
	case physical == c.physical:
		c.physical, c.logical = next(physical, c.logical)
	case physical == remote.PhysicalTimeMs:
		c.physical, c.logical = next(physical, remote.LogicalCounter)
	default:
		c.physical, c.logical = physical, 0
	}
}

// Last возвращает последнюю выданную или наблюдаемую метку без изменения часов.
func (c *Clock) Last() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current()
}

// Restore восстанавливает состояние часов после перезапуска.
// Метка меньше текущего состояния игнорируется: часы никогда не идут назад.
func (c *Clock) Restore(ts Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts.PhysicalTimeMs > c.physical ||
		(ts.PhysicalTimeMs == c.physical && ts.LogicalCounter > c.logical) {
		c.physical = ts.PhysicalTimeMs
		c.logical = ts.LogicalCounter
	}
}

func (c *Clock) current() Timestamp {
	return Timestamp{
		PhysicalTimeMs: c.physical,
		LogicalCounter: c.logical,
		NodeID:         c.nodeID,
	}
}

// next увеличивает логический счетчик; при переполнении переносит в физическое время.
func next(physical int64, logical uint32) (int64, uint32) {
	if logical == math.MaxUint32 {
		return physical + 1, 0
	}
	return physical, logical + 1
}
