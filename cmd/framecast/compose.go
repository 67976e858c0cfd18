package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/framecast/pkg/export"
	"github.com/spf13/cobra"
)

var composeCmd = &cobra.Command{
	Use:   "compose <photo>",
	Short: "Frame a photo and write the PNG",
	Long: `Composites the photo under the active frame (or --frame) and writes a square PNG.
Use "-" to read the photo from stdin. With --download or --share the action is
recorded and the file is named like the web export.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, _ := cmd.Flags().GetString("frame")
		out, _ := cmd.Flags().GetString("output")
		download, _ := cmd.Flags().GetBool("download")
		share, _ := cmd.Flags().GetBool("share")
		if download && share {
			return fmt.Errorf("--download and --share are mutually exclusive")
		}

		photo, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		res, err := a.studio.Compose(ctx, photo, frame)
		if err != nil {
			if msg := export.UserMessage(err); msg != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}
			return err
		}

		stdout := cmd.OutOrStdout()
		switch {
		case download:
			dl, err := a.studio.Download(ctx, res)
			if err != nil {
				return err
			}
			if out == "" {
				out = dl.FileName
			}
			if err := writeOutput(stdout, out, dl.PNG); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), export.MsgDownloaded)

		case share:
			pkg, err := a.studio.Share(ctx, res)
			if err != nil {
				return err
			}
			if out == "" {
				out = pkg.FileName
			}
			if err := writeOutput(stdout, out, pkg.PNG); err != nil {
				return err
			}
			if !pkg.Native {
				fmt.Fprintln(cmd.ErrOrStderr(), export.MsgShareFallback)
				fmt.Fprintln(cmd.ErrOrStderr(), pkg.FallbackURL)
			}

		default:
			if out == "" {
				out = "framed.png"
			}
			if err := writeOutput(stdout, out, res.PNG); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), export.MsgReady)
		}
		return nil
	},
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	return data, nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(composeCmd)
	composeCmd.Flags().StringP("frame", "f", "", "Frame name (default: the active frame)")
	composeCmd.Flags().StringP("output", "o", "", `Output path, "-" for stdout`)
	composeCmd.Flags().Bool("download", false, "Record a download")
	composeCmd.Flags().Bool("share", false, "Share the image and record a share")
}
