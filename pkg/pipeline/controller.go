package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ControllerConfig tunes the batch execution loop.
type ControllerConfig struct {
	// Concurrency is the number of batch workers. Batches touch disjoint
	// blocks, so workers never contend on document state.
	Concurrency int
	// MaxRetries is how often a whole batch is retried before its blocks
	// fall back to isolation retries.
	MaxRetries int
	// RetryDelay is the fixed pause between batch attempts.
	RetryDelay time.Duration
	// CallTimeout bounds a single transformer call.
	CallTimeout time.Duration
	// BlockRetryAttempts is how often a single block is retried alone after
	// its batch gave up, before quarantine.
	BlockRetryAttempts int
}

const (
	defaultConcurrency        = 3
	defaultMaxRetries         = 3
	defaultRetryDelay         = 2 * time.Second
	defaultCallTimeout        = 10 * time.Minute
	defaultBlockRetryAttempts = 2
)

func (c *ControllerConfig) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.BlockRetryAttempts <= 0 {
		c.BlockRetryAttempts = defaultBlockRetryAttempts
	}
}

// Controller drives planned batches through the transformer with bounded
// concurrency, retries failed batches, isolates failing blocks, and
// quarantines what cannot be translated. Every block reaches a terminal
// state; the controller never fails a whole document over one block.
type Controller struct {
	cfg         ControllerConfig
	transformer Transformer
	codec       *Codec
	recon       *Reconstructor
	recorder    *Recorder
	logger      *zap.Logger

	blocks []Block
	encs   map[int]BlockEncoding
}

func NewController(cfg ControllerConfig, transformer Transformer, codec *Codec, recon *Reconstructor, recorder *Recorder, blocks []Block, encs map[int]BlockEncoding, logger *zap.Logger) *Controller {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:         cfg,
		transformer: transformer,
		codec:       codec,
		recon:       recon,
		recorder:    recorder,
		logger:      logger,
		blocks:      blocks,
		encs:        encs,
	}
}

// Run executes all batches and applies their results. It returns an error
// only for request-level failures such as cancellation; per-block failures
// end in quarantine and are reported through the recorder.
func (c *Controller) Run(ctx context.Context, batches []Batch, targetLanguage string) error {
	batchChan := make(chan Batch, len(batches))
	for _, b := range batches {
		batchChan <- b
	}
	close(batchChan)

	var wg sync.WaitGroup
	for w := 0; w < c.cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for batch := range batchChan {
				select {
				case <-ctx.Done():
					c.abandonBatch(batch)
					continue
				default:
				}
				c.processBatch(ctx, worker, batch, targetLanguage)
			}
		}(w)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return WrapError(ErrCanceled, "CTRL_CANCELED", "translation interrupted", "controller")
	}
	return nil
}

// abandonBatch quarantines a batch the context killed before it started, so
// its blocks still reach a terminal state.
func (c *Controller) abandonBatch(batch Batch) {
	for _, id := range batch.BlockIDs {
		c.quarantine(id)
	}
}

func (c *Controller) processBatch(ctx context.Context, worker int, batch Batch, targetLanguage string) {
	encs := make([]BlockEncoding, 0, len(batch.BlockIDs))
	texts := make([]string, 0, len(batch.BlockIDs))
	for _, id := range batch.BlockIDs {
		enc := c.encs[id]
		encs = append(encs, enc)
		texts = append(texts, enc.Marked)
		c.recorder.SetState(id, BlockInFlight)
	}

	c.logger.Debug("processing batch",
		zap.Int("workerId", worker),
		zap.Int("batchId", batch.ID),
		zap.Int("blockCount", len(batch.BlockIDs)),
		zap.String("mode", batch.Mode.String()),
		zap.Int("estimatedTokens", batch.EstimatedTokens))

	segments, err := c.callWithRetry(ctx, encs, texts, targetLanguage, batch)
	if err != nil {
		c.logger.Warn("batch exhausted retries, isolating blocks",
			zap.Int("batchId", batch.ID),
			zap.Error(err))
		for _, enc := range encs {
			c.retrySingleBlock(ctx, enc, targetLanguage)
		}
		return
	}

	for i, enc := range encs {
		if strings.TrimSpace(segments[i]) == "" {
			c.retrySingleBlock(ctx, enc, targetLanguage)
			continue
		}
		c.applySegment(enc, segments[i])
	}
}

// callWithRetry attempts one transformer call per retry budget slot with a
// fixed delay between attempts. A response that yields no usable segment for
// any block spends a batch retry like a transport error, before the blocks
// fall back to isolation. Non-retryable errors short-circuit.
func (c *Controller) callWithRetry(ctx context.Context, encs []BlockEncoding, texts []string, targetLanguage string, batch Batch) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.recorder.RetryAttempted("batch", batch.ID)
			for _, id := range batch.BlockIDs {
				c.recorder.SetState(id, BlockRetrying)
			}
			select {
			case <-ctx.Done():
				return nil, WrapError(ErrCanceled, "CTRL_CANCELED", "canceled between attempts", "controller")
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		result, err := c.transformer.Transform(callCtx, texts, targetLanguage)
		cancel()
		if err != nil {
			lastErr = WrapError(err, "CTRL_TRANSFORM", "transformer call failed", "controller")
			if !IsRetryable(err) {
				return nil, lastErr
			}
			c.logger.Debug("transformer attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		c.recorder.AddTokens(result.InputTokens, result.OutputTokens)
		segments := RepairBatch(encs, result)
		if !allEmpty(segments) {
			return segments, nil
		}
		lastErr = WrapError(ErrResponseMalformed, "CTRL_EMPTY", "response yielded no usable segment", "controller")
		c.logger.Debug("transformer attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	return nil, lastErr
}

// allEmpty reports whether every segment is blank.
func allEmpty(segments []string) bool {
	for _, s := range segments {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

// retrySingleBlock is the isolation path: the block is sent alone, with its
// own retry budget, and quarantined when that too fails.
func (c *Controller) retrySingleBlock(ctx context.Context, enc BlockEncoding, targetLanguage string) {
	for attempt := 0; attempt < c.cfg.BlockRetryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			c.quarantine(enc.BlockID)
			return
		default:
		}
		if attempt > 0 {
			c.recorder.RetryAttempted("isolate", enc.BlockID)
			time.Sleep(c.cfg.RetryDelay)
		}
		c.recorder.SetState(enc.BlockID, BlockRetrying)

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		result, err := c.transformer.Transform(callCtx, []string{enc.Marked}, targetLanguage)
		cancel()
		if err != nil {
			c.logger.Debug("isolated block attempt failed",
				zap.Int("blockId", enc.BlockID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if !IsRetryable(err) {
				break
			}
			continue
		}
		c.recorder.AddTokens(result.InputTokens, result.OutputTokens)
		segments := RepairBatch([]BlockEncoding{enc}, result)
		if strings.TrimSpace(segments[0]) == "" {
			continue
		}
		c.applySegment(enc, segments[0])
		return
	}
	c.quarantine(enc.BlockID)
}

// applySegment decodes one block's translated segment and writes it back.
// Block attributes are reapplied from the encode-time capture, so the block
// ends up with the attributes it was translated under.
func (c *Controller) applySegment(enc BlockEncoding, segment string) {
	block := c.blocks[enc.BlockID]
	block.SetAttributes(enc.Attrs)
	if enc.Mode == FidelityFine {
		decoded := c.codec.DecodeBlock(enc, segment)
		c.recorder.UnitDegraded(decoded.Degraded)
		c.recorder.UnitRepaired(decoded.Repaired)
		if decoded.Extraneous > 0 {
			c.logger.Debug("discarded text outside unit markers",
				zap.Int("blockId", enc.BlockID),
				zap.Int("chars", decoded.Extraneous))
		}
		c.recon.ApplyFine(block, decoded)
	} else {
		c.recon.ApplyCoarse(block, strings.TrimSpace(StripMarkers(Sanitize(segment))))
	}
	c.recorder.BlockTranslated(enc.BlockID)
}

// quarantine marks the block failed and rewrites it with the wrapped
// original text so nothing is lost.
func (c *Controller) quarantine(blockID int) {
	enc := c.encs[blockID]
	c.recon.Quarantine(c.blocks[blockID], enc.OriginalText)
	c.recorder.BlockQuarantined(blockID)
	c.logger.Warn("block quarantined",
		zap.Int("blockId", blockID),
		zap.Int("unitCount", len(enc.Units)))
}
