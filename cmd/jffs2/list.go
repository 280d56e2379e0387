package main

import (
	"github.com/gingerrexayers/jffs2-go/internal/jffs2/commands"
	"github.com/spf13/cobra"
)

func NewListCommand() *cobra.Command {
	opts := commands.LoadOptions()

	cmd := &cobra.Command{
		Use:   "list <image>",
		Short: "List all entries reconstructed from an image.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.List(args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", opts.Strict, "Fail when the image produced any diagnostics")

	return cmd
}
