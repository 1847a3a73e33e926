// Command durablemem is a thin process boundary over the memory service:
// flag parsing and JSON output only, no business logic.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "durablemem",
	Short: "Long-term conversational memory: write, retrieve, forget",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
