package main

import (
	"fmt"
	"os"

	"kevfeed/internal/cli"
)

func main() {
	if err := cli.NewCmdRoot().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to exec kevfeed: %+v\n", err)
		os.Exit(1)
	}
}
