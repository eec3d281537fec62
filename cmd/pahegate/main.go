// pahegate fetches content from a bot-walled anime streaming site
// through a cascade of circumvention strategies.
package main

import (
	"os"

	"github.com/pahegate/pahegate/cmd/pahegate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
