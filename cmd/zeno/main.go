// Package main provides the entry point for the zeno CLI.
package main

import (
	"fmt"
	"os"

	"github.com/zeno-search/zeno/cmd/zeno/cmd"
	zerrors "github.com/zeno-search/zeno/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, zerrors.FormatForCLI(err))
		os.Exit(1)
	}
}
