package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/framecast/pkg/domain"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print download and share totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		watch, _ := cmd.Flags().GetBool("watch")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if !watch {
			return printCounts(out, a.studio.Counts(), asJSON)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		for counts := range a.studio.Watch(ctx) {
			if err := printCounts(out, counts, asJSON); err != nil {
				return err
			}
		}
		return nil
	},
}

func printCounts(w io.Writer, counts domain.ActionCounts, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(counts)
	}
	_, err := fmt.Fprintf(w, "download: %d\nshare: %d\ntotal: %d\n",
		counts[domain.ActionDownload], counts[domain.ActionShare], counts.Total())
	return err
}

var recordCmd = &cobra.Command{
	Use:       "record <download|share>",
	Short:     "Record one action in the configured store",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(domain.ActionDownload), string(domain.ActionShare)},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseActionKind(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.studio.Record(cmd.Context(), kind); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recorded %s\n", kind)
		return nil
	},
}

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "List the configured frames",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		frames, err := a.studio.Frames(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, f := range frames {
			marker := " "
			if f.Active {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-20s %5dx%-5d area=%.2f\n", marker, f.Name, f.Width, f.Height, f.PhotoAreaFraction)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, recordCmd, framesCmd)
	statsCmd.Flags().Bool("json", false, "Print JSON")
	statsCmd.Flags().BoolP("watch", "w", false, "Keep printing totals as they change")
}
