package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/regtechmx/expediente-engine/internal/engine"
	"github.com/regtechmx/expediente-engine/internal/store"
)

var batchManifest string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process every case listed in a manifest file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		cases, err := loadManifest(batchManifest)
		if err != nil {
			return err
		}

		eng, err := buildEngine()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		summary := runBatch(ctx, eng, st, cases, cfg.Batch.MaxConcurrentCases)

		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal summary")
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchManifest, "manifest", "", "path to the batch manifest JSON (required)")
	batchCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(batchCmd)
}

// BatchCase is one manifest entry: a case id plus up to three source files.
type BatchCase struct {
	CaseID string `json:"case_id"`
	XML    string `json:"xml,omitempty"`
	PDF    string `json:"pdf,omitempty"`
	DOCX   string `json:"docx,omitempty"`
}

// BatchSummary reports the outcome of a batch run.
type BatchSummary struct {
	Total     int      `json:"total"`
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// loadManifest reads the batch manifest: a JSON array of cases.
func loadManifest(path string) ([]BatchCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read manifest %s", path)
	}
	var cases []BatchCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, eris.Wrap(err, "parse manifest")
	}
	if len(cases) == 0 {
		return nil, eris.New("manifest lists no cases")
	}
	return cases, nil
}

// runBatch processes cases concurrently. One bad case never halts the batch:
// failures are logged, counted and reported in the summary. Results are
// recorded in manifest order.
func runBatch(ctx context.Context, eng *engine.Engine, st store.Store, cases []BatchCase, concurrency int) BatchSummary {
	type outcome struct {
		caseID string
		err    error
	}
	outcomes := make([]outcome, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, bc := range cases {
		g.Go(func() error {
			outcomes[i] = outcome{caseID: bc.CaseID, err: processCase(gctx, eng, st, bc)}
			return nil
		})
	}
	g.Wait()

	summary := BatchSummary{Total: len(cases)}
	for _, o := range outcomes {
		if o.err != nil {
			summary.Failed++
			summary.FailedIDs = append(summary.FailedIDs, o.caseID)
			zap.L().Error("batch case failed",
				zap.String("case_id", o.caseID),
				zap.Error(o.err))
			continue
		}
		summary.Processed++
	}
	zap.L().Info("batch complete",
		zap.Int("total", summary.Total),
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed))
	return summary
}

func processCase(ctx context.Context, eng *engine.Engine, st store.Store, bc BatchCase) error {
	req, err := buildRequest(bc.CaseID, bc.XML, bc.PDF, bc.DOCX)
	if err != nil {
		return err
	}
	run, err := eng.Process(ctx, req)
	if err != nil {
		return err
	}
	return st.SaveRun(ctx, run)
}
