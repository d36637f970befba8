package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"inferd/internal/codec"
	"inferd/internal/manager"
	"inferd/pkg/types"
)

func (a *app) newPredictCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "predict <model-id>",
		Short: "Load one model and run a single prediction read as JSON from stdin or --input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var r io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var req types.PredictRequest
			if err := json.NewDecoder(r).Decode(&req); err != nil {
				return fmt.Errorf("decode input: %w", err)
			}

			cat, err := buildCatalog(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			mgr := manager.NewWithConfig(manager.ManagerConfig{
				Catalog:  cat,
				Loader:   buildLoader(ctx, a.cfg, a.log),
				Capacity: 1,
				Warmup:   a.cfg.Warmup,
				Logger:   &a.log,
			})
			defer func() { _ = mgr.Shutdown(ctx) }()

			start := time.Now()
			st, err := mgr.LoadByID(ctx, args[0], manager.LoadOptions{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "loaded %s (%s) in %s\n",
				st.ID, humanize.Bytes(uint64(st.MemoryBytes)), time.Since(start).Round(time.Millisecond))

			out, err := mgr.Predict(ctx, args[0], manager.PredictionInput{
				Data: codec.Raw{
					Values:     req.Values,
					Shape:      req.Shape,
					Text:       req.Text,
					SampleRate: req.SampleRate,
				},
				Preprocessed: req.Preprocessed,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(types.PredictResponse{
				Predictions:      out.Predictions,
				Probabilities:    out.Probabilities,
				Labels:           out.Labels,
				Confidence:       out.Confidence,
				ProcessingTimeMs: float64(out.ProcessingTime.Microseconds()) / 1000,
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON input file (- for stdin)")
	return cmd
}
