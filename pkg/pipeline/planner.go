package pipeline

import "strings"

// Planner groups blocks into batches, choosing a fidelity mode and token
// budget per batch from a lookahead profile of upcoming content.
type Planner struct {
	cfg PlannerConfig
}

// PlannerConfig bounds batch construction. Zero values fall back to the
// defaults below.
type PlannerConfig struct {
	// LookaheadWindow is how many upcoming blocks the profile considers.
	LookaheadWindow int
	// MaxBlocksPerBatch caps batch length regardless of token headroom.
	MaxBlocksPerBatch int
	// MinBlocksPerBatch lets a batch exceed its token budget until it holds
	// at least this many blocks.
	MinBlocksPerBatch int
	// MaxBatchComplexity caps the summed complexity score per batch.
	MaxBatchComplexity int
	// OverflowFactor bounds how far past the token budget a batch may grow
	// while still under the minimum block count.
	OverflowFactor float64
}

const (
	defaultLookaheadWindow    = 100
	defaultMaxBlocksPerBatch  = 10
	defaultMinBlocksPerBatch  = 2
	defaultMaxBatchComplexity = 50
	defaultOverflowFactor     = 1.5
)

func NewPlanner(cfg PlannerConfig) *Planner {
	if cfg.LookaheadWindow <= 0 {
		cfg.LookaheadWindow = defaultLookaheadWindow
	}
	if cfg.MaxBlocksPerBatch <= 0 {
		cfg.MaxBlocksPerBatch = defaultMaxBlocksPerBatch
	}
	if cfg.MinBlocksPerBatch <= 0 {
		cfg.MinBlocksPerBatch = defaultMinBlocksPerBatch
	}
	if cfg.MaxBatchComplexity <= 0 {
		cfg.MaxBatchComplexity = defaultMaxBatchComplexity
	}
	if cfg.OverflowFactor <= 1 {
		cfg.OverflowFactor = defaultOverflowFactor
	}
	return &Planner{cfg: cfg}
}

// EstimateTokens approximates the transformer's token count for a text.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// BlockProfile is the per-block complexity assessment the planner batches
// by.
type BlockProfile struct {
	BlockID    int
	Tokens     int
	Complexity int
	// InlineFormatting marks blocks whose runs carry more than one distinct
	// explicit style, the blocks that suffer most from coarse reapplication.
	InlineFormatting bool
}

// ProfileBlock scores a block's structural complexity. Higher scores mean
// the block is more likely to lose formatting under coarse translation.
func ProfileBlock(blockID int, block Block) BlockProfile {
	text := block.Text()
	p := BlockProfile{BlockID: blockID, Tokens: EstimateTokens(text)}

	runs := block.Runs()
	if len(runs) > 2 {
		p.Complexity += 3
	}

	styled := 0
	for _, r := range runs {
		if r.Style().HasToggle() || r.Style().FontName != "" || r.Style().Color >= 0 {
			styled++
		}
	}
	if styled > 1 {
		p.Complexity += 2
		p.InlineFormatting = true
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 3 || strings.HasPrefix(text, "   ") || strings.HasPrefix(text, "\t") {
		p.Complexity += 2
	}
	short := 0
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" && len(t) < 60 {
			short++
		}
	}
	if short > 1 {
		p.Complexity++
	}

	// Dialogue-heavy prose tends to fragment badly in coarse batches.
	if len(text) > 0 {
		quotes := 0
		for _, r := range text {
			switch r {
			case '"', '“', '”', '«', '»', '—':
				quotes++
			}
		}
		if float64(quotes)/float64(len([]rune(text))) > 0.04 {
			p.Complexity++
		}
	}
	return p
}

// complexThreshold is the score at or above which a block counts as complex
// in window ratios.
const complexThreshold = 3

// windowChoice is the atomic (mode, budget) pair a lookahead profile yields.
type windowChoice struct {
	mode   FidelityMode
	budget int
}

// profileWindow inspects up to LookaheadWindow profiles starting at from and
// picks the fidelity mode and token budget for the batch that begins there.
// Dense formatting shrinks batches and forces fine mode so marker streams
// stay short; plain prose flows through large coarse batches.
func (p *Planner) profileWindow(profiles []BlockProfile, from int) windowChoice {
	end := from + p.cfg.LookaheadWindow
	if end > len(profiles) {
		end = len(profiles)
	}
	window := profiles[from:end]
	if len(window) == 0 {
		return windowChoice{mode: FidelityCoarse, budget: 5000}
	}

	complex, inline := 0, 0
	for _, bp := range window {
		if bp.Complexity >= complexThreshold {
			complex++
		}
		if bp.InlineFormatting {
			inline++
		}
	}
	complexRatio := float64(complex) / float64(len(window))
	inlineRatio := float64(inline) / float64(len(window))

	switch {
	case complexRatio > 0.4 || inlineRatio > 0.5:
		return windowChoice{mode: FidelityFine, budget: 2000}
	case complexRatio > 0.2 || inlineRatio > 0.3:
		return windowChoice{mode: FidelityFine, budget: 3000}
	default:
		return windowChoice{mode: FidelityCoarse, budget: 5000}
	}
}

// Plan partitions the profiled blocks into batches. Each batch's mode and
// budget are fixed once, when the batch opens, from the lookahead window at
// that position. A batch closes when adding the next block would exceed the
// token budget, the block cap, or the complexity cap, except that batches
// below the minimum block count keep absorbing blocks up to the bounded
// overflow limit. A block too large for an empty batch ships alone; blocks
// are never split.
func (p *Planner) Plan(profiles []BlockProfile) []Batch {
	var batches []Batch
	i := 0
	for i < len(profiles) {
		choice := p.profileWindow(profiles, i)
		overflow := int(float64(choice.budget) * p.cfg.OverflowFactor)

		batch := Batch{
			ID:          len(batches),
			Mode:        choice.mode,
			TokenBudget: choice.budget,
		}
		complexity := 0

		for i < len(profiles) {
			bp := profiles[i]
			next := batch.EstimatedTokens + bp.Tokens
			switch {
			case len(batch.BlockIDs) == 0:
				// An oversized block still ships, alone.
			case len(batch.BlockIDs) >= p.cfg.MaxBlocksPerBatch:
				goto done
			case complexity+bp.Complexity > p.cfg.MaxBatchComplexity:
				goto done
			case next > choice.budget && len(batch.BlockIDs) >= p.cfg.MinBlocksPerBatch:
				goto done
			case next > overflow:
				goto done
			}
			batch.BlockIDs = append(batch.BlockIDs, bp.BlockID)
			batch.EstimatedTokens = next
			complexity += bp.Complexity
			i++
		}
	done:
		batches = append(batches, batch)
	}
	return batches
}
