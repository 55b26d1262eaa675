// Package main provides the entrypoint for gh-tag-trigger.
package main

import (
	"os"

	"github.com/isometry/gh-tag-trigger/cmd"
)

func main() {
	if err := cmd.New().Execute(); err != nil {
		os.Exit(1)
	}
}
