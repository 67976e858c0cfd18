package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/aretw0/framecast"
	httpAdapter "github.com/aretw0/framecast/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the framecast release, HTTP API version and Go runtime",
	RunE: func(cmd *cobra.Command, args []string) error {
		release := strings.TrimSpace(framecast.Version)
		out := cmd.OutOrStdout()

		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Fprintln(out, release)
			return nil
		}

		doc, err := httpAdapter.GetSwagger()
		if err != nil {
			return fmt.Errorf("embedded API document: %w", err)
		}
		api := "unknown"
		if doc.Info != nil {
			api = doc.Info.Version
		}
		fmt.Fprintf(out, "framecast version %s\n", release)
		fmt.Fprintf(out, "  api:     %s\n", api)
		fmt.Fprintf(out, "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("short", false, "Print only the release number")
}
