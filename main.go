package main

import (
	"os"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
