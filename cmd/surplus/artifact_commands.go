package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"surplus/internal/config"
	"surplus/internal/fileutil"
	"surplus/internal/textutil"
)

func newArtifactCommand(ctx *commandContext) *cobra.Command {
	artifactCmd := &cobra.Command{
		Use:   "artifact",
		Short: "Read stored run reports",
	}
	artifactCmd.AddCommand(newArtifactGetCommand(ctx))
	artifactCmd.AddCommand(newArtifactListCommand(ctx))
	return artifactCmd
}

func newArtifactGetCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "get <artifact-id>",
		Short: "Print a stored artifact, or copy it with --output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.artifactStore()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if strings.TrimSpace(outputPath) == "" {
				data, err := store.GetBytes(cmd.Context(), id)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			src, err := store.Path(id)
			if err != nil {
				return err
			}
			target, err := config.ExpandPath(outputPath)
			if err != nil {
				return err
			}
			if info, err := os.Stat(target); err == nil && info.IsDir() {
				target = filepath.Join(target, textutil.SanitizeFileName("report-"+id+filepath.Ext(src)))
			}
			if err := fileutil.CopyFileVerified(src, target); err != nil {
				return fmt.Errorf("copy artifact: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Copy the artifact to this file or directory")
	return cmd
}

func newArtifactListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored artifact ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.artifactStore()
			if err != nil {
				return err
			}
			ids, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No artifacts stored")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
}
