package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/travel-booking/internal/logger"
	"github.com/iliyamo/travel-booking/internal/metrics"
	"github.com/iliyamo/travel-booking/internal/model"
)

// OverdueLister finds bookings whose payment window has closed.
type OverdueLister interface {
	ListOverdue(ctx context.Context, now time.Time, after model.OverdueRef, limit int) ([]model.OverdueRef, error)
}

// Expirer expires one booking.  BookingService implements it.
type Expirer interface {
	Expire(ctx context.Context, bookingID uint64) (bool, error)
}

// Sweeper forces overdue payment_pending bookings through Expire.  It
// holds no state between runs, so it can be invoked repeatedly and from
// several processes at once.
type Sweeper struct {
	bookings  OverdueLister
	expirer   Expirer
	batchSize int
	now       Clock
}

// NewSweeper returns a Sweeper listing batchSize bookings per page.  A
// non-positive batchSize falls back to 200.
func NewSweeper(bookings OverdueLister, expirer Expirer, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Sweeper{bookings: bookings, expirer: expirer, batchSize: batchSize, now: utcNow}
}

// SweepFailure is one booking the sweep could not expire.
type SweepFailure struct {
	BookingID uint64 `json:"booking_id"`
	Error     string `json:"error"`
}

// SweepReport summarizes one sweep.  Skipped counts bookings that changed
// state (or were no longer due) between listing and locking.
type SweepReport struct {
	Scanned    int            `json:"scanned"`
	Expired    int            `json:"expired"`
	Skipped    int            `json:"skipped"`
	Failures   []SweepFailure `json:"failures"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Sweep expires every booking overdue at the start of the run.  Each booking
// is handled in its own transaction; a failing booking is recorded in the
// report and the sweep moves on.  An error is returned only when the
// overdue bookings cannot be listed at all.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	cutoff := s.now()
	report := SweepReport{StartedAt: cutoff, Failures: []SweepFailure{}}
	var after model.OverdueRef

	for {
		if err := ctx.Err(); err != nil {
			return s.finish(report), err
		}
		batch, err := s.bookings.ListOverdue(ctx, cutoff, after, s.batchSize)
		if err != nil {
			return s.finish(report), err
		}
		for _, ref := range batch {
			report.Scanned++
			s.expireOne(ctx, ref.ID, &report)
		}
		if len(batch) < s.batchSize {
			break
		}
		// Failed rows are still payment_pending; page past them.
		after = batch[len(batch)-1]
	}
	return s.finish(report), nil
}

func (s *Sweeper) expireOne(ctx context.Context, id uint64, report *SweepReport) {
	expired, err := s.expirer.Expire(ctx, id)
	switch {
	case err == nil && expired:
		report.Expired++
	case err == nil, errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotFound):
		report.Skipped++
	default:
		logger.Errorf("sweep: booking %d: %v", id, err)
		report.Failures = append(report.Failures, SweepFailure{BookingID: id, Error: err.Error()})
	}
}

func (s *Sweeper) finish(r SweepReport) SweepReport {
	r.FinishedAt = s.now()
	metrics.RecordSweep(r.Expired, len(r.Failures))
	return r
}

// SweepLock keeps timer-driven sweeps of several server instances from
// running at the same moment.  Sweeps stay correct without it.
type SweepLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// SweepRunner invokes Sweep on a fixed interval.
type SweepRunner struct {
	sweeper  *Sweeper
	lock     SweepLock
	interval time.Duration
}

// NewSweepRunner returns a runner.  lock may be nil.
func NewSweepRunner(sweeper *Sweeper, lock SweepLock, interval time.Duration) *SweepRunner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweepRunner{sweeper: sweeper, lock: lock, interval: interval}
}

// Run sweeps every interval until ctx is cancelled.
func (r *SweepRunner) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	logger.Infof("sweeper: running every %s", r.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper: stopped")
			return
		case <-t.C:
			if _, _, err := r.RunOnce(ctx); err != nil {
				logger.Errorf("sweeper: %v", err)
			}
		}
	}
}

// RunOnce performs one sweep if the lock can be taken.  ran is false when
// another instance holds the lock.  When the lock backend is unavailable the
// sweep runs anyway.
func (r *SweepRunner) RunOnce(ctx context.Context) (report SweepReport, ran bool, err error) {
	if r.lock != nil {
		ok, lerr := r.lock.Acquire(ctx)
		switch {
		case lerr != nil:
			logger.Errorf("sweeper: lock unavailable, sweeping without it: %v", lerr)
		case !ok:
			logger.Debug("sweeper: another instance holds the lock")
			return SweepReport{}, false, nil
		default:
			defer func() {
				if rerr := r.lock.Release(context.Background()); rerr != nil {
					logger.Errorf("sweeper: release lock: %v", rerr)
				}
			}()
		}
	}
	report, err = r.sweeper.Sweep(ctx)
	if err == nil && (report.Expired > 0 || len(report.Failures) > 0) {
		logger.Infof("sweeper: scanned=%d expired=%d skipped=%d failures=%d",
			report.Scanned, report.Expired, report.Skipped, len(report.Failures))
	}
	return report, true, err
}
