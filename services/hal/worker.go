// services/hal/worker.go
package hal

import (
	"context"
	"time"
)

// measureWorker serialises trigger/collect cycles for the devices sharing
// one transport. Collects are scheduled on a due-queue so a slow sensor
// never blocks the others on the same worker.
type measureWorker struct {
	cfg  WorkerConfig
	reqQ chan MeasureReq
	sink chan<- Result

	pending  map[string]*collectItem
	want     map[string]bool
	collects []*collectItem
	timer    *time.Timer
}

type collectItem struct {
	id      string
	adaptor Adaptor
	due     time.Time
	retries int
}

func NewWorker(cfg WorkerConfig, sink chan<- Result) *measureWorker {
	if cfg.TriggerTimeout <= 0 {
		cfg.TriggerTimeout = 100 * time.Millisecond
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = 2 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 15 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 6
	}
	if cfg.InputQueueSize <= 0 {
		cfg.InputQueueSize = 16
	}
	if cfg.ResultsQueueSz <= 0 {
		cfg.ResultsQueueSz = 16
	}
	return &measureWorker{
		cfg: cfg, reqQ: make(chan MeasureReq, cfg.InputQueueSize),
		sink:    sink,
		pending: map[string]*collectItem{},
		want:    map[string]bool{},
		timer:   time.NewTimer(time.Hour),
	}
}

// Submit enqueues a measurement request; returns false when the queue is
// full. Priority requests get one short grace period.
func (w *measureWorker) Submit(req MeasureReq) bool {
	select {
	case w.reqQ <- req:
		return true
	default:
		if req.Prio {
			select {
			case w.reqQ <- req:
				return true
			case <-time.After(5 * time.Millisecond):
			}
		}
		return false
	}
}

func (w *measureWorker) Start(ctx context.Context) {
	if !w.timer.Stop() {
		drainTimer(w.timer)
	}
	go func() {
		for {
			if next := w.minDue(); next.IsZero() {
				resetTimer(w.timer, time.Hour)
			} else {
				resetTimer(w.timer, time.Until(next))
			}
			select {
			case <-ctx.Done():
				return
			case req := <-w.reqQ:
				w.trigger(ctx, req)
			case <-w.timer.C:
				w.collectDue(ctx)
			}
		}
	}()
}

func (w *measureWorker) trigger(ctx context.Context, req MeasureReq) {
	if _, ok := w.pending[req.ID]; ok {
		// Already mid-cycle; remember priority requests so a fresh
		// cycle starts if this one fails.
		if req.Prio {
			w.want[req.ID] = true
		}
		return
	}
	tctx, cancel := context.WithTimeout(ctx, w.cfg.TriggerTimeout)
	after, err := req.Adaptor.Trigger(tctx)
	cancel()
	if err != nil {
		w.emit(Result{ID: req.ID, Err: err})
		return
	}
	it := &collectItem{id: req.ID, adaptor: req.Adaptor, due: time.Now().Add(after)}
	w.pending[req.ID] = it
	w.collects = append(w.collects, it)
}

func (w *measureWorker) collectDue(ctx context.Context) {
	now := time.Now()
	var keep []*collectItem
	for _, it := range w.collects {
		if now.Before(it.due) {
			keep = append(keep, it)
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, w.cfg.CollectTimeout)
		s, err := it.adaptor.Collect(cctx)
		cancel()
		switch {
		case err == nil:
			delete(w.pending, it.id)
			delete(w.want, it.id)
			w.emit(Result{ID: it.id, Sample: s})
		case err == ErrNotReady && it.retries < w.cfg.MaxRetries:
			it.retries++
			it.due = now.Add(w.cfg.RetryBackoff)
			keep = append(keep, it)
		default:
			delete(w.pending, it.id)
			w.emit(Result{ID: it.id, Err: err})
			if w.want[it.id] {
				tctx, cancel := context.WithTimeout(ctx, w.cfg.TriggerTimeout)
				after, terr := it.adaptor.Trigger(tctx)
				cancel()
				if terr == nil {
					it.retries = 0
					it.due = time.Now().Add(after)
					w.pending[it.id] = it
					keep = append(keep, it)
				}
				delete(w.want, it.id)
			}
		}
	}
	w.collects = keep
}

func (w *measureWorker) emit(r Result) {
	w.sink <- r
}

func (w *measureWorker) minDue() time.Time {
	var min time.Time
	for _, it := range w.collects {
		if min.IsZero() || it.due.Before(min) {
			min = it.due
		}
	}
	return min
}
