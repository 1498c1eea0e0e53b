// Package main provides the entry point for the customrag CLI.
package main

import (
	"os"

	"github.com/DrNightingales/Custom-RAG/cmd/customrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
