// Package batch drives a watermarking run over a list of input items:
// bounded parallel processing, in-order archive assembly, progress
// reporting and failure handling.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/aliskhannn/watermarker/internal/archive"
	"github.com/aliskhannn/watermarker/internal/model"
	"github.com/aliskhannn/watermarker/internal/processor"
)

// maxDefaultWorkers caps the default degree of parallelism; every
// in-flight item holds two full pixel surfaces.
const maxDefaultWorkers = 16

var (
	ErrAlreadyRunning    = errors.New("a batch run is already in progress")
	ErrNothingSucceeded  = errors.New("no item could be watermarked")
	errUnknownPolicyName = errors.New("unknown failure policy")
)

// itemProcessor turns one input item into its encoded, watermarked form.
type itemProcessor interface {
	Process(ctx context.Context, item model.InputItem, cfg model.WatermarkConfig) (model.EncodedResult, error)
}

// Options configures an Orchestrator.
type Options struct {
	Workers          int    // 0 means DefaultWorkers()
	Policy           Policy // empty means BestEffort
	ArchiveRoot      string // empty means archive.DefaultRoot
	CompressionLevel int    // 0 means archive.DefaultLevel
	Now              func() time.Time
}

// DefaultWorkers is a small multiple of the available CPUs.
func DefaultWorkers() int {
	return min(2*runtime.NumCPU(), maxDefaultWorkers)
}

// Result is the outcome of a run.
type Result struct {
	RunID    string
	NoOp     bool // the input was empty; nothing ran
	Archive  []byte
	Filename string
	Report   model.Report
}

// Orchestrator runs batches one at a time. It moves Idle -> Running ->
// Completed | Failed and may be reused for further runs once a run ends.
type Orchestrator struct {
	processor itemProcessor
	opts      Options

	mu      sync.Mutex
	state   model.State
	runID   string
	total   int
	cancel  context.CancelFunc
	stopped bool // the current or last run was cancelled
	subs    map[int]func(model.Progress)
	nextSub int

	completed atomic.Int64
	failed    atomic.Int64
}

// New creates an idle Orchestrator.
func New(p itemProcessor, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	if opts.Policy == "" {
		opts.Policy = BestEffort
	}
	if opts.ArchiveRoot == "" {
		opts.ArchiveRoot = archive.DefaultRoot
	}
	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = archive.DefaultLevel
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Orchestrator{
		processor: p,
		opts:      opts,
		state:     model.StateIdle,
		subs:      make(map[int]func(model.Progress)),
	}
}

// Subscribe registers fn to receive a progress snapshot after every
// state change and every finished item. Callbacks run on the goroutine
// that called Run, one at a time. The returned func unsubscribes.
func (o *Orchestrator) Subscribe(fn func(model.Progress)) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Snapshot returns the current progress.
func (o *Orchestrator) Snapshot() model.Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() model.Progress {
	return model.Progress{
		RunID:     o.runID,
		State:     o.state,
		Completed: int(o.completed.Load()),
		Failed:    int(o.failed.Load()),
		Total:     o.total,
		Cancelled: o.stopped,
	}
}

// Cancel stops dispatching new items of the current run. Items already
// being processed are allowed to finish. It is a no-op when no run is
// in progress.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == model.StateRunning && o.cancel != nil {
		o.cancel()
	}
}

func (o *Orchestrator) publish() {
	o.mu.Lock()
	p := o.snapshotLocked()
	subs := make([]func(model.Progress), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(p)
	}
}

// start enters Running, or reports that another run holds the guard.
func (o *Orchestrator) start(cancel context.CancelFunc, total int) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == model.StateRunning {
		return "", ErrAlreadyRunning
	}

	o.state = model.StateRunning
	o.runID = uuid.NewString()
	o.total = total
	o.cancel = cancel
	o.stopped = false
	o.completed.Store(0)
	o.failed.Store(0)

	return o.runID, nil
}

// finish leaves Running, releasing the reentrancy guard. cancelled marks
// a Failed state caused by cancellation rather than by an item.
func (o *Orchestrator) finish(state model.State, cancelled bool) {
	o.mu.Lock()
	o.state = state
	o.stopped = cancelled
	o.cancel = nil
	o.mu.Unlock()

	o.publish()
}

type outcome struct {
	index  int
	result model.EncodedResult
	err    error
}

// Run watermarks items with cfg and packs the results into one archive
// whose entry order equals the input order.
//
// An empty item list is a no-op: the orchestrator stays Idle and Run
// returns a Result with NoOp set and a nil error. With the BestEffort
// policy failed items are skipped and listed in the report; the archive
// is returned as long as one item succeeded. With FailFast the first
// failure aborts the run and no archive is produced. A cancelled run
// never produces an archive and returns an error matching
// model.ErrCancelled. The report is returned in every case.
func (o *Orchestrator) Run(ctx context.Context, items []model.InputItem, cfg model.WatermarkConfig) (*Result, error) {
	if len(items) == 0 {
		zlog.Logger.Info().Msg("no input items, nothing to do")
		return &Result{NoOp: true}, nil
	}

	if err := processor.Validate(cfg); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runID, err := o.start(cancel, len(items))
	if err != nil {
		return nil, err
	}

	startedAt := o.opts.Now()
	zlog.Logger.Info().
		Str("run_id", runID).
		Int("items", len(items)).
		Int("workers", o.opts.Workers).
		Str("policy", string(o.opts.Policy)).
		Msg("batch run started")
	o.publish()

	// A slot is held from dispatch until the item is flushed or recorded
	// as failed, so at most Workers results wait for reassembly.
	sem := semaphore.NewWeighted(int64(o.opts.Workers))
	outcomes := make(chan outcome, o.opts.Workers)
	dispatched := o.dispatch(runCtx, sem, items, cfg, outcomes)

	arc := archive.New(
		archive.WithRoot(o.opts.ArchiveRoot),
		archive.WithLevel(o.opts.CompressionLevel),
		archive.WithModTime(startedAt),
	)

	res := &Result{RunID: runID}
	failures := make([]*model.Failure, len(items))
	pending := make(map[int]model.EncodedResult)
	next := 0

	var abortErr error // set once the run can no longer succeed

	for out := range outcomes {
		if out.err != nil {
			failures[out.index] = &model.Failure{
				Path:   items[out.index].Path,
				Reason: out.err.Error(),
				Err:    out.err,
			}
			zlog.Logger.Warn().
				Err(out.err).
				Str("run_id", runID).
				Str("path", items[out.index].Path).
				Msg("item failed")

			if o.opts.Policy == FailFast && abortErr == nil {
				abortErr = out.err
				cancel()
			}
		} else {
			pending[out.index] = out.result
		}

		// Flush the contiguous prefix that is ready, in input order.
		for next < len(items) {
			if f := failures[next]; f != nil {
				next++
				sem.Release(1)
				continue
			}
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			sem.Release(1)

			if abortErr != nil {
				continue
			}
			if err := arc.Add(r); err != nil {
				if errors.Is(err, archive.ErrOutsideRoot) {
					failures[next-1] = &model.Failure{Path: r.Path, Reason: err.Error(), Err: err}
					o.completed.Add(-1)
					o.failed.Add(1)
					zlog.Logger.Warn().Err(err).Str("run_id", runID).Str("path", r.Path).Msg("item rejected by archive")
					continue
				}
				abortErr = err
				cancel()
				continue
			}
			res.Report.Succeeded = append(res.Report.Succeeded, r.Path)
		}

		o.publish()
	}

	for _, f := range failures {
		if f != nil {
			res.Report.Failed = append(res.Report.Failed, *f)
		}
	}

	cancelled := abortErr == nil && int(dispatched.Load()) < len(items)
	res.Report.Cancelled = cancelled

	switch {
	case cancelled:
		arc.Discard()
		res.Report.Succeeded = nil
		o.finish(model.StateFailed, true)
		zlog.Logger.Warn().Str("run_id", runID).Msg("batch run cancelled")
		return res, model.NewError(model.ErrCancelled, "", context.Cause(runCtx))

	case abortErr != nil:
		arc.Discard()
		res.Report.Succeeded = nil
		o.finish(model.StateFailed, false)
		zlog.Logger.Error().Err(abortErr).Str("run_id", runID).Msg("batch run aborted")
		return res, abortErr

	case arc.Len() == 0:
		arc.Discard()
		o.finish(model.StateFailed, false)
		zlog.Logger.Error().Str("run_id", runID).Msg("batch run failed, no item succeeded")
		return res, fmt.Errorf("%w: %s", ErrNothingSucceeded, res.Report.Summary())
	}

	data, err := arc.Finalize()
	if err != nil {
		res.Report.Succeeded = nil
		o.finish(model.StateFailed, false)
		return res, err
	}

	res.Archive = data
	res.Filename = archive.Filename(startedAt)
	o.finish(model.StateCompleted, false)

	zlog.Logger.Info().
		Str("run_id", runID).
		Int("succeeded", len(res.Report.Succeeded)).
		Int("failed", len(res.Report.Failed)).
		Int("archive_bytes", len(data)).
		Dur("elapsed", o.opts.Now().Sub(startedAt)).
		Msg("batch run completed")

	return res, nil
}

// dispatch feeds items to concurrent tasks in input order, taking one
// slot of sem per item, until ctx is cancelled. Slots are returned by the
// reassembly loop, not by the tasks. Tasks run on a context detached from
// cancellation so in-flight items always finish; the errgroup only waits
// for them. outcomes is closed once every dispatched task has reported.
// The returned counter holds the number of dispatched items and is final
// once outcomes is closed.
func (o *Orchestrator) dispatch(ctx context.Context, sem *semaphore.Weighted, items []model.InputItem, cfg model.WatermarkConfig, outcomes chan<- outcome) *atomic.Int64 {
	var dispatched atomic.Int64
	workCtx := context.WithoutCancel(ctx)

	go func() {
		var g errgroup.Group

		for i, item := range items {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			if ctx.Err() != nil {
				sem.Release(1)
				break
			}
			dispatched.Add(1)

			g.Go(func() error {
				r, err := o.processor.Process(workCtx, item, cfg)
				if err != nil {
					o.failed.Add(1)
				} else {
					o.completed.Add(1)
				}
				outcomes <- outcome{index: i, result: r, err: err}
				return nil
			})
		}

		_ = g.Wait()
		close(outcomes)
	}()

	return &dispatched
}
