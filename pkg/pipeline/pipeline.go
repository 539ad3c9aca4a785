package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Config collects the tunables for one Pipeline.
type Config struct {
	Planner    PlannerConfig
	Controller ControllerConfig
}

// Pipeline wires the merger, codec, planner, reconstructor, and controller
// into the full translate-in-place flow. A Pipeline is reusable across
// documents; all per-request state lives in the request.
type Pipeline struct {
	cfg         Config
	transformer Transformer
	logger      *zap.Logger
}

func New(cfg Config, transformer Transformer, logger *zap.Logger) (*Pipeline, error) {
	if transformer == nil {
		return nil, WrapError(ErrInvalidConfig, "PIPE_CONFIG", "transformer is required", "init")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, transformer: transformer, logger: logger}, nil
}

// Report summarizes one translation request. Events is the ordered
// processing log across all workers.
type Report struct {
	Stats
	Events   []Event
	Duration time.Duration
}

// TranslateDocument translates every meaningful block of doc in place.
// Encoding and planning run single-threaded; transformer calls run
// concurrently over disjoint batches. Blocks that cannot be translated are
// quarantined, never dropped, so the returned error is non-nil only for
// request-level failures.
func (p *Pipeline) TranslateDocument(ctx context.Context, doc Document, targetLanguage string) (*Report, error) {
	start := time.Now()

	blocks := doc.Blocks()
	if len(blocks) == 0 {
		return nil, WrapError(ErrEmptyDocument, "PIPE_EMPTY", "nothing to translate", "encode")
	}
	if err := VerifyDelimiterSafety(doc); err != nil {
		return nil, err
	}

	recorder := NewRecorder(len(blocks))
	merger := NewMerger()
	codec := NewCodec()
	recon := NewReconstructor(doc)

	// Profile every block, then plan. Blocks without meaningful text are
	// profiled as zero-cost and excluded from batching entirely.
	profiles := make([]BlockProfile, 0, len(blocks))
	for i, block := range blocks {
		if !MeaningfulText(block.Text()) {
			recorder.BlockSkipped(i)
			continue
		}
		profiles = append(profiles, ProfileBlock(i, block))
	}
	if len(profiles) == 0 {
		return &Report{Stats: recorder.Snapshot(), Events: recorder.Events(), Duration: time.Since(start)}, nil
	}

	planner := NewPlanner(p.cfg.Planner)
	batches := planner.Plan(profiles)

	// Encode each block under the mode its batch was assigned. This pass is
	// the only writer of the codec's id state. A block whose merged units do
	// not concatenate back to its text is a merge defect; it is quarantined
	// here and never reaches the transformer.
	encs := make(map[int]BlockEncoding, len(profiles))
	for bi := range batches {
		batch := &batches[bi]
		recorder.BatchPlanned(batch.ID, batch.Mode)
		kept := batch.BlockIDs[:0]
		for _, blockID := range batch.BlockIDs {
			block := blocks[blockID]
			units := merger.SplitUnits(merger.MergeBlock(block))
			enc := codec.EncodeBlock(blockID, units, batch.Mode, block.Attributes())
			if enc.OriginalText != block.Text() {
				p.logger.Error("encoded units do not reassemble the block",
					zap.Int("blockId", blockID),
					zap.Error(ErrEncodingInvariant))
				recon.Quarantine(block, block.Text())
				recorder.BlockQuarantined(blockID)
				continue
			}
			encs[blockID] = enc
			recorder.SetState(blockID, BlockPending)
			kept = append(kept, blockID)
		}
		batch.BlockIDs = kept
	}
	runnable := make([]Batch, 0, len(batches))
	for _, batch := range batches {
		if len(batch.BlockIDs) > 0 {
			runnable = append(runnable, batch)
		}
	}

	p.logger.Info("translation planned",
		zap.String("requestId", recorder.Snapshot().RequestID),
		zap.Int("totalBlocks", len(blocks)),
		zap.Int("translatableBlocks", len(profiles)),
		zap.Int("batchCount", len(batches)),
		zap.String("targetLanguage", targetLanguage))

	controller := NewController(p.cfg.Controller, p.transformer, codec, recon, recorder, blocks, encs, p.logger)
	if err := controller.Run(ctx, runnable, targetLanguage); err != nil {
		return &Report{Stats: recorder.Snapshot(), Events: recorder.Events(), Duration: time.Since(start)}, err
	}

	report := &Report{Stats: recorder.Snapshot(), Events: recorder.Events(), Duration: time.Since(start)}
	p.logger.Info("translation finished",
		zap.String("requestId", report.RequestID),
		zap.Int("translatedBlocks", report.TranslatedBlocks),
		zap.Int("quarantinedBlocks", report.QuarantinedBlocks),
		zap.Int("degradedUnits", report.DegradedUnits),
		zap.Duration("elapsed", report.Duration))
	return report, nil
}
