package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// BlockState tracks one block through the translation lifecycle.
type BlockState int

const (
	BlockPending BlockState = iota
	BlockInFlight
	BlockRetrying
	BlockSucceeded
	BlockFailed
)

func (s BlockState) String() string {
	switch s {
	case BlockPending:
		return "pending"
	case BlockInFlight:
		return "inFlight"
	case BlockRetrying:
		return "retrying"
	case BlockSucceeded:
		return "succeeded"
	case BlockFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats is the summary of one translation request.
type Stats struct {
	RequestID         string
	TotalBlocks       int
	TranslatedBlocks  int
	SkippedBlocks     int
	QuarantinedBlocks int
	DegradedUnits     int
	RepairedUnits     int
	Retries           int
	Batches           int
	FineBatches       int
	CoarseBatches     int
	InputTokens       int
	OutputTokens      int
}

// Event is one entry in the ordered processing log. The stage tells whether
// ID names a block or a batch: "plan" events are batch-scoped, everything
// else is block-scoped.
type Event struct {
	Time    time.Time
	Stage   string
	ID      int
	Outcome string
}

// Recorder accumulates per-block state, counters, and the ordered event log
// from concurrent batch workers. All methods are safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	stats  Stats
	states map[int]BlockState
	events []Event
}

// NewRecorder creates a Recorder with a fresh request id.
func NewRecorder(totalBlocks int) *Recorder {
	return &Recorder{
		stats: Stats{
			RequestID:   uuid.New().String(),
			TotalBlocks: totalBlocks,
		},
		states: make(map[int]BlockState, totalBlocks),
	}
}

// record appends an event; callers must hold the mutex.
func (r *Recorder) record(stage string, id int, outcome string) {
	r.events = append(r.events, Event{Time: time.Now(), Stage: stage, ID: id, Outcome: outcome})
}

func (r *Recorder) SetState(blockID int, state BlockState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[blockID] = state
}

func (r *Recorder) State(blockID int) BlockState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[blockID]
}

func (r *Recorder) BlockTranslated(blockID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[blockID] = BlockSucceeded
	r.stats.TranslatedBlocks++
	r.record("apply", blockID, "translated")
}

func (r *Recorder) BlockQuarantined(blockID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[blockID] = BlockFailed
	r.stats.QuarantinedBlocks++
	r.record("apply", blockID, "quarantined")
}

func (r *Recorder) BlockSkipped(blockID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.SkippedBlocks++
	r.record("profile", blockID, "skipped")
}

func (r *Recorder) UnitDegraded(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.DegradedUnits += n
}

func (r *Recorder) UnitRepaired(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.RepairedUnits += n
}

// RetryAttempted counts one retry. The id is the batch for whole-batch
// retries and the block for isolation retries.
func (r *Recorder) RetryAttempted(stage string, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Retries++
	r.record(stage, id, "retry")
}

func (r *Recorder) BatchPlanned(batchID int, mode FidelityMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Batches++
	if mode == FidelityFine {
		r.stats.FineBatches++
	} else {
		r.stats.CoarseBatches++
	}
	r.record("plan", batchID, mode.String())
}

func (r *Recorder) AddTokens(input, output int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.InputTokens += input
	r.stats.OutputTokens += output
}

// Snapshot returns a copy of the accumulated stats.
func (r *Recorder) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Events returns a copy of the processing log in recording order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
