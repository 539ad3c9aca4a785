package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/formatkeep/formatkeep/internal/config"
	"github.com/formatkeep/formatkeep/internal/docx"
	"github.com/formatkeep/formatkeep/internal/logger"
	"github.com/formatkeep/formatkeep/pkg/pipeline"
	"github.com/formatkeep/formatkeep/pkg/transformer"
)

var (
	cfgFile     string
	targetLang  string
	modelName   string
	concurrency int
	debugMode   bool
	showVersion bool
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// NewRootCmd builds the formatkeep command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formatkeep <input.docx> <output.docx>",
		Short: "Translate DOCX documents while preserving run-level formatting",
		Long: `formatkeep translates Word documents through an OpenAI-compatible API.
Styled text spans survive the round trip: formatting is encoded into inline
markers before translation and rebound to the document afterwards. Blocks
the model loses are kept in the output, wrapped in <untranslated> tags.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			if len(args) != 2 {
				return fmt.Errorf("expected input and output paths, got %d arguments", len(args))
			}
			if !strings.HasSuffix(strings.ToLower(args[0]), ".docx") {
				return fmt.Errorf("input %s is not a .docx file", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Printf("formatkeep %s (built %s)\n", version, buildTime)
				return nil
			}
			return run(args[0], args[1])
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: ~/.formatkeep.yaml)")
	cmd.Flags().StringVarP(&targetLang, "to", "t", "", "target language, name or BCP 47 tag (required)")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "override the configured model")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "override the configured batch concurrency")
	cmd.Flags().BoolVarP(&debugMode, "debug", "d", false, "enable debug logging")
	cmd.Flags().BoolVarP(&showVersion, "version", "v", false, "print version and exit")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(inputPath, outputPath string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if modelName != "" {
		cfg.API.Model = modelName
	}
	if concurrency > 0 {
		cfg.Pipeline.Concurrency = concurrency
	}
	if debugMode {
		cfg.Debug = true
	}

	log := logger.New(cfg.Debug)
	defer log.Sync() //nolint:errcheck

	target := canonicalLanguage(targetLang)
	log.Info("starting translation",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.String("targetLanguage", target),
		zap.String("model", cfg.API.Model))

	file, err := docx.OpenFile(inputPath, log)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputPath, err)
	}
	if promoted := file.NormalizeTOC(); promoted > 0 {
		log.Info("normalized hand-typed table of contents",
			zap.Int("promotedHeadings", promoted))
	}

	client, err := transformer.NewClient(transformer.Config{
		APIKey:      cfg.API.Key,
		BaseURL:     cfg.API.BaseURL,
		Model:       cfg.API.Model,
		Temperature: cfg.API.Temperature,
		MaxTokens:   cfg.API.MaxTokens,
		Timeout:     cfg.API.Timeout,
	}, log)
	if err != nil {
		return err
	}

	pipe, err := pipeline.New(pipeline.Config{
		Planner: pipeline.PlannerConfig{
			LookaheadWindow:   cfg.Pipeline.LookaheadWindow,
			MaxBlocksPerBatch: cfg.Pipeline.MaxBlocksPerBatch,
			MinBlocksPerBatch: cfg.Pipeline.MinBlocksPerBatch,
		},
		Controller: pipeline.ControllerConfig{
			Concurrency:        cfg.Pipeline.Concurrency,
			MaxRetries:         cfg.Pipeline.MaxRetries,
			RetryDelay:         cfg.Pipeline.RetryDelay,
			CallTimeout:        cfg.Pipeline.CallTimeout,
			BlockRetryAttempts: cfg.Pipeline.BlockRetryAttempts,
		},
	}, client, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := pipe.TranslateDocument(ctx, docx.NewAdapter(file), target)
	if err != nil {
		return err
	}

	if err := file.WriteFile(outputPath); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}

	fmt.Println(renderSummary(report))
	return nil
}

// canonicalLanguage resolves a language name or tag to its English display
// name, which keeps prompts consistent no matter how the user spelled the
// flag. Unparseable input passes through unchanged.
func canonicalLanguage(input string) string {
	tag, err := language.Parse(input)
	if err != nil {
		return input
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return input
}
