package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/regtechmx/expediente-engine/internal/engine"
	"github.com/regtechmx/expediente-engine/internal/model"
)

var (
	processCaseID string
	processXML    string
	processPDF    string
	processDOCX   string
	processNoSave bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process one case from its source documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("process"); err != nil {
			return err
		}

		req, err := buildRequest(processCaseID, processXML, processPDF, processDOCX)
		if err != nil {
			return err
		}

		eng, err := buildEngine()
		if err != nil {
			return err
		}

		run, err := eng.Process(ctx, req)
		if err != nil {
			return err
		}

		if !processNoSave {
			if err := saveRun(ctx, run); err != nil {
				return err
			}
		}

		out, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal run")
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processCaseID, "case", "", "case identifier (required)")
	processCmd.Flags().StringVar(&processXML, "xml", "", "path to the manually filled XML-derived text")
	processCmd.Flags().StringVar(&processPDF, "pdf", "", "path to the OCR'd PDF text")
	processCmd.Flags().StringVar(&processDOCX, "docx", "", "path to the OCR'd DOCX text")
	processCmd.Flags().BoolVar(&processNoSave, "no-save", false, "skip persisting the run")
	processCmd.MarkFlagRequired("case")
	rootCmd.AddCommand(processCmd)
}

// buildRequest assembles an engine request from up to three source files.
func buildRequest(caseID, xmlPath, pdfPath, docxPath string) (engine.Request, error) {
	req := engine.Request{CaseID: caseID}

	paths := []struct {
		kind model.SourceKind
		path string
	}{
		{model.SourceXML, xmlPath},
		{model.SourcePDFOCR, pdfPath},
		{model.SourceDOCXOCR, docxPath},
	}
	for _, p := range paths {
		if p.path == "" {
			continue
		}
		data, err := os.ReadFile(p.path)
		if err != nil {
			return engine.Request{}, eris.Wrapf(err, "read %s source", p.kind)
		}
		req.Sources = append(req.Sources, engine.SourceDocument{Kind: p.kind, Text: string(data)})
	}
	if len(req.Sources) == 0 {
		return engine.Request{}, eris.New("at least one of --xml, --pdf, --docx is required")
	}
	return req, nil
}

func saveRun(ctx context.Context, run *model.Run) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.SaveRun(ctx, run)
}
