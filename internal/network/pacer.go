package network

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RequestKind selects the pacing interval for an outbound request.
type RequestKind string

const (
	KindSearch RequestKind = "search"
	KindDetail RequestKind = "detail"
)

// Interval is an inclusive range a pacing delay is drawn from.
type Interval struct {
	Min time.Duration
	Max time.Duration
}

func (i Interval) Validate() error {
	if i.Min < 0 || i.Max < 0 {
		return fmt.Errorf("negative delay interval [%s, %s]", i.Min, i.Max)
	}
	if i.Max < i.Min {
		return fmt.Errorf("delay interval max %s is below min %s", i.Max, i.Min)
	}
	return nil
}

var DefaultIntervals = map[RequestKind]Interval{
	KindSearch: {Min: 2 * time.Second, Max: 5 * time.Second},
	KindDetail: {Min: 2 * time.Second, Max: 4 * time.Second},
}

// PacerOptions configures a Pacer. Zero values fall back to the defaults;
// MaxPerSecond <= 0 disables the rate ceiling.
type PacerOptions struct {
	Intervals    map[RequestKind]Interval
	MaxPerSecond float64
	Sleep        func(ctx context.Context, d time.Duration) error
	Rand         *rand.Rand
}

// Pacer blocks before every outbound request for a random, per-kind delay and
// then waits on a process-wide rate limiter.
type Pacer struct {
	mu        sync.Mutex
	rand      *rand.Rand
	intervals map[RequestKind]Interval
	limiter   *rate.Limiter
	sleep     func(ctx context.Context, d time.Duration) error
	logger    zerolog.Logger
}

func NewPacer(opts PacerOptions, logger zerolog.Logger) (*Pacer, error) {
	intervals := make(map[RequestKind]Interval, len(DefaultIntervals))
	for kind, interval := range DefaultIntervals {
		intervals[kind] = interval
	}
	for kind, interval := range opts.Intervals {
		if err := interval.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		intervals[kind] = interval
	}

	limit := rate.Inf
	if opts.MaxPerSecond > 0 {
		limit = rate.Limit(opts.MaxPerSecond)
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Pacer{
		rand:      rng,
		intervals: intervals,
		limiter:   rate.NewLimiter(limit, 1),
		sleep:     sleep,
		logger:    logger.With().Str("component", "pacer").Logger(),
	}, nil
}

// Delay draws the next delay for kind. Unknown kinds use the detail interval.
func (p *Pacer) Delay(kind RequestKind) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	interval, ok := p.intervals[kind]
	if !ok {
		interval = p.intervals[KindDetail]
	}
	span := int64(interval.Max - interval.Min)
	if span <= 0 {
		return interval.Min
	}
	return interval.Min + time.Duration(p.rand.Int63n(span+1))
}

// Wait blocks for a freshly drawn delay and the rate limiter.
func (p *Pacer) Wait(ctx context.Context, kind RequestKind) error {
	delay := p.Delay(kind)
	p.logger.Debug().Str("kind", string(kind)).Dur("delay", delay).Msg("pacing request")
	if err := p.sleep(ctx, delay); err != nil {
		return err
	}
	return p.limiter.Wait(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
