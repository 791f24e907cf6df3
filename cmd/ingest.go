package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/detect"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store a captured page as a snapshot of an asset",
	Long: "Reads a captured page from --file (or stdin with -) and stores it as a snapshot.\n" +
		"HTML input is cleaned and hashed; use --text for pre-extracted text.",
	RunE: func(cmd *cobra.Command, args []string) error {
		assetID, _ := cmd.Flags().GetInt64("asset")
		file, _ := cmd.Flags().GetString("file")
		asText, _ := cmd.Flags().GetBool("text")
		bagFile, _ := cmd.Flags().GetString("bag")
		status, _ := cmd.Flags().GetInt("status")
		capturedAt, _ := cmd.Flags().GetString("captured-at")
		thenDetect, _ := cmd.Flags().GetBool("detect")
		keep, _ := cmd.Flags().GetBool("keep-duplicates")

		raw, err := readInput(file)
		if err != nil {
			return err
		}
		input := ingest.Input{AssetID: assetID, StatusCode: status}
		if asText {
			input.Text = string(raw)
		} else {
			input.HTML = string(raw)
		}
		if bagFile != "" {
			b, err := readInput(bagFile)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(b, &input.Structured); err != nil {
				return fmt.Errorf("parse structured bag: %w", err)
			}
		}
		if capturedAt != "" {
			t, err := time.Parse(time.RFC3339, capturedAt)
			if err != nil {
				return fmt.Errorf("invalid --captured-at %q: %w", capturedAt, err)
			}
			input.CapturedAt = t
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		in := ingest.New(st, ingest.Config{
			Readability:    appConfig.Readability,
			KeepDuplicates: keep,
			Logger:         logger,
		})
		res, err := in.Ingest(ctx, input)
		if err != nil {
			return err
		}
		if res.Unchanged {
			fmt.Printf("asset %d unchanged, no snapshot stored\n", assetID)
			return nil
		}
		fmt.Printf("snapshot %d stored for asset %d (hash %s, %d chars)\n",
			res.Snapshot.ID, assetID, short(res.Snapshot.ContentHash), len(res.Snapshot.Text))

		if !thenDetect {
			return nil
		}
		p, err := newPipeline(ctx, st)
		if err != nil {
			return err
		}
		out, err := p.detector.DetectAsset(ctx, assetID)
		if err != nil {
			return err
		}
		printOutcomes([]detect.Outcome{*out})
		return nil
	},
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

func short(hash string) string {
	return truncate(hash, 12)
}

func init() {
	ingestCmd.Flags().Int64("asset", 0, "Asset ID the capture belongs to")
	ingestCmd.Flags().StringP("file", "f", "-", "Captured page (- for stdin)")
	ingestCmd.Flags().Bool("text", false, "Treat input as extracted text instead of HTML")
	ingestCmd.Flags().String("bag", "", "JSON file with the producer's structured data")
	ingestCmd.Flags().Int("status", 200, "HTTP status of the capture")
	ingestCmd.Flags().String("captured-at", "", "Capture time (RFC 3339, default now)")
	ingestCmd.Flags().Bool("detect", false, "Run detection for the asset after storing")
	ingestCmd.Flags().Bool("keep-duplicates", false, "Store the snapshot even when its hash is unchanged")
	_ = ingestCmd.MarkFlagRequired("asset")
}
