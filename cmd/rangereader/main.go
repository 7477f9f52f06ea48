// Command rangereader is a thin diagnostic CLI over the core library: it
// exists so the read path is reachable end-to-end without writing
// throwaway Go programs, not as a product surface in its own right.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rangereader",
		Short: "Diagnostic CLI for the tileverse range-reader library",
	}
	root.AddCommand(newReadCmd())
	root.AddCommand(newCacheCmd())
	return root
}
