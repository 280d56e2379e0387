package main

import (
	"github.com/gingerrexayers/jffs2-go/internal/jffs2/commands"
	"github.com/spf13/cobra"
)

// NewExtractCommand creates the 'extract' command for the CLI.
func NewExtractCommand() *cobra.Command {
	opts := commands.LoadOptions()
	var outputDir string

	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Extract the reconstructed tree to the host filesystem.",
		Long: `Extracts all recoverable files, directories and symlinks from a JFFS2
image. Extraction is best effort: nodes that fail their CRC and files
whose data cannot be decoded are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Extract(args[0], outputDir, opts)
		},
	}

	// Define flags for the command.
	cmd.Flags().StringVarP(&outputDir, "output", "o", "extracted", "The directory to extract files to")
	cmd.Flags().IntVar(&opts.Workers, "workers", opts.Workers, "Number of parallel extraction workers (0 = one per CPU)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", opts.Strict, "Fail when any node was skipped or any file failed to extract")
	cmd.Flags().StringArrayVar(&opts.Excludes, "exclude", nil, "Gitignore-style pattern of paths to skip (repeatable)")
	cmd.Flags().StringVar(&opts.ExcludeFrom, "exclude-from", "", "File containing exclude patterns, one per line")

	return cmd
}
