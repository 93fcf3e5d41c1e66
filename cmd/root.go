package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "concierge"}

	root.AddCommand(serveCMD(), migrateCMD(), reindexCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
