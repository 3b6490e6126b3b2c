// Command glassdomectl is the operator CLI for a running Overseer.
package main

import (
	"fmt"
	"os"

	"github.com/glassdome/overseer/cmd/glassdomectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
