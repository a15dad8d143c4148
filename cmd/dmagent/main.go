// Package main is the entry point for the deployment manager agent,
// the daemon that polls a deployment manager server and performs safe,
// rollback-capable in-place upgrades of a local service directory.
package main

import (
	"fmt"
	"os"

	"github.com/sam-dm/deployment-manager/cmd/dmagent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
