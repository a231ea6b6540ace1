package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"imagebatch/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load(".env", ".env.local")
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
