// Command rbacctl validates goRBAC policy files, runs one-off checks
// against them and benchmarks concurrent checks.
package main

import (
	"os"

	"github.com/MrEthical07/goRBAC/cmd/rbacctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
