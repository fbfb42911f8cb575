// Command cachectl inspects and maintains a storefront cache from the shell.
package main

import (
	"os"

	"github.com/agentuity/storefront-cache/tui"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		tui.ShowError(os.Stderr, "%s", err)
		os.Exit(1)
	}
}
