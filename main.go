package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yaklabco/kiln/cmd/kiln"
	"github.com/yaklabco/kiln/pkg/fatal"
)

func main() {
	os.Exit(actualMain())
}

func actualMain() int {
	ctx := context.Background()

	rootCmd := kiln.NewRootCmd(ctx)

	if err := kiln.ExecuteWithFang(ctx, rootCmd); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return fatal.ExitStatus(err)
	}

	return 0
}
