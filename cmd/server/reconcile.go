package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/savak1990/my-dogs/internal/reconciler"
	"github.com/spf13/cobra"
)

type replayResult struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	FinalStatus string `json:"final_status"`
	Reason      string `json:"reason,omitempty"`
}

func newReconcileCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay a batch of storage notifications",
		Long: "Reads an S3 event notification document or a plain list of {bucket, key, size}\n" +
			"records and reconciles it against the image records. Exits non-zero when any\n" +
			"record failed and needs redelivery.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			batch, err := reconciler.DecodeNotifications(data)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.reconciler.Reconcile(cmd.Context(), batch)
			if err := writeResults(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if failed := result.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d notifications failed", len(failed), len(result.Results))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "notification batch to replay, - for stdin")
	return cmd
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return data, nil
}

func writeResults(w io.Writer, result reconciler.BatchResult) error {
	out := make([]replayResult, 0, len(result.Results))
	for _, r := range result.Results {
		out = append(out, replayResult{
			Bucket:      r.Bucket,
			Key:         r.Key,
			FinalStatus: string(r.FinalStatus),
			Reason:      r.Reason,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
