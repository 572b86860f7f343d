package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leaflog/leaflog/internal/domain"
)

// FlushTimeout caps how long Flush waits before declaring persistence
// flushed anyway.
const FlushTimeout = time.Second

// MirrorOutbox is the explicit queue behind the best-effort remote
// mirror. Mirrors coalesce per owner: only the newest list survives,
// matching the whole-document last-writer-wins contract. One attempt
// per entry, failures logged, never retried.
type MirrorOutbox struct {
	mu      sync.Mutex
	mirrors map[string][]domain.PlantRecord
	deletes []string
	busy    bool

	wake   chan struct{}
	closed chan struct{}
	once   sync.Once

	backend Backend
	log     *zap.SugaredLogger
}

func NewMirrorOutbox(backend Backend, log *zap.SugaredLogger) *MirrorOutbox {
	ob := &MirrorOutbox{
		mirrors: make(map[string][]domain.PlantRecord),
		wake:    make(chan struct{}, 1),
		closed:  make(chan struct{}),
		backend: backend,
		log:     log,
	}
	go ob.run()
	return ob
}

// EnqueueMirror schedules the owner's full list for a remote upsert.
// A pending mirror for the same owner is replaced.
func (ob *MirrorOutbox) EnqueueMirror(owner string, list []domain.PlantRecord) {
	snapshot := make([]domain.PlantRecord, len(list))
	copy(snapshot, list)

	ob.mu.Lock()
	ob.mirrors[owner] = snapshot
	ob.mu.Unlock()
	ob.signal()
}

// EnqueueDelete schedules stored assets for remote deletion.
func (ob *MirrorOutbox) EnqueueDelete(refs []string) {
	if len(refs) == 0 {
		return
	}
	ob.mu.Lock()
	ob.deletes = append(ob.deletes, refs...)
	ob.mu.Unlock()
	ob.signal()
}

// Flush waits for the queue to drain, at most FlushTimeout, and
// resolves either way.
func (ob *MirrorOutbox) Flush(ctx context.Context) {
	deadline := time.After(FlushTimeout)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-tick.C:
			ob.mu.Lock()
			idle := len(ob.mirrors) == 0 && len(ob.deletes) == 0 && !ob.busy
			ob.mu.Unlock()
			if idle {
				return
			}
		}
	}
}

// Close stops the worker. Pending entries are dropped, like an app
// process terminated mid-mirror.
func (ob *MirrorOutbox) Close() {
	ob.once.Do(func() { close(ob.closed) })
}

func (ob *MirrorOutbox) signal() {
	select {
	case ob.wake <- struct{}{}:
	default:
	}
}

func (ob *MirrorOutbox) run() {
	for {
		select {
		case <-ob.closed:
			return
		case <-ob.wake:
			ob.drain()
		}
	}
}

func (ob *MirrorOutbox) drain() {
	for {
		ob.mu.Lock()
		var owner string
		var list []domain.PlantRecord
		for o, l := range ob.mirrors {
			owner, list = o, l
			break
		}
		if owner != "" {
			delete(ob.mirrors, owner)
			ob.busy = true
			ob.mu.Unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := ob.backend.SavePlantList(ctx, owner, list)
			cancel()
			if err != nil {
				ob.log.Warnw("plant list mirror failed", "owner", owner, "error", err)
			}

			ob.mu.Lock()
			ob.busy = false
			ob.mu.Unlock()
			continue
		}

		if len(ob.deletes) > 0 {
			refs := ob.deletes
			ob.deletes = nil
			ob.busy = true
			ob.mu.Unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := ob.backend.DeleteFiles(ctx, refs)
			cancel()
			if err != nil {
				ob.log.Warnw("asset delete failed", "count", len(refs), "error", err)
			}

			ob.mu.Lock()
			ob.busy = false
			ob.mu.Unlock()
			continue
		}

		ob.mu.Unlock()
		return
	}
}
