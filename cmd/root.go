package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regtechmx/expediente-engine/internal/classify"
	"github.com/regtechmx/expediente-engine/internal/config"
	"github.com/regtechmx/expediente-engine/internal/engine"
	"github.com/regtechmx/expediente-engine/internal/extract"
	"github.com/regtechmx/expediente-engine/internal/merge"
	"github.com/regtechmx/expediente-engine/internal/model"
	"github.com/regtechmx/expediente-engine/internal/semantic"
	"github.com/regtechmx/expediente-engine/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "expediente-engine",
	Short: "Multi-source extraction, fusion and classification of regulatory requirements",
	Long:  "Reconciles fields extracted from manually filled XML, OCR'd PDF and OCR'd DOCX versions of an oficio, classifies the requirement type and validates its legal standing.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initStore opens and migrates the configured store. Operations retry on
// transient failures such as sqlite lock contention.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return store.WithRetry(st, store.DefaultRetryConfig()), nil
}

// buildEngine assembles the processing engine from configuration, loading
// YAML overrides for the field registry and dictionaries when configured.
func buildEngine() (*engine.Engine, error) {
	registry := model.DefaultRegistry()
	if cfg.Paths.Registry != "" {
		r, err := model.LoadRegistry(cfg.Paths.Registry)
		if err != nil {
			return nil, err
		}
		registry = r
	}

	var classifyDict *classify.Dictionary
	if cfg.Paths.ClassifyDictionary != "" {
		d, err := classify.LoadDictionary(cfg.Paths.ClassifyDictionary)
		if err != nil {
			return nil, err
		}
		classifyDict = d
	}

	var semanticDict *semantic.Dictionary
	if cfg.Paths.SemanticDictionary != "" {
		d, err := semantic.LoadDictionary(cfg.Paths.SemanticDictionary)
		if err != nil {
			return nil, err
		}
		semanticDict = d
	}

	return engine.New(engine.Options{
		Registry:    registry,
		ExtractMode: extract.Mode(cfg.Extract.Mode),
		ExtractCfg: extract.Config{
			Concurrency: cfg.Extract.Concurrency,
			MergePolicy: merge.Policy(cfg.Extract.MergePolicy),
		},
		FuzzyThreshold: cfg.Extract.FuzzyThreshold,
		FusionCfg:      cfg.Fusion,
		ClassifyDict:   classifyDict,
		ClassifyCfg:    cfg.Classify,
		SemanticDict:   semanticDict,
		SemanticCfg:    cfg.Semantic,
	}), nil
}
