package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "jffs2",
		Short: "Read, list and extract JFFS2 flash filesystem images.",
	}

	// Add commands
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewExtractCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
