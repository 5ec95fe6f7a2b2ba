// @title           DocQA API
// @version         1.0
// @description     Answers questions about a single PDF of notes, grounded in its text.
// @termsOfService  http://swagger.io/terms/

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/docqa/internal/domain/ragErrors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(report(err))
	}
}

// report prints err for a person and picks the exit code.
func report(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return 130
	case ragErrors.IsConfig(err):
		fmt.Fprintf(os.Stderr, "docqa: configuration error: %v\n", err)
		return 2
	default:
		fmt.Fprintf(os.Stderr, "docqa: %v\n", err)
		return 1
	}
}
