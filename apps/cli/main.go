package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/homebasehq/homebase/apps/cli/root"
)

func main() {
	// Local .env is optional; flags still override anything loaded here.
	_ = godotenv.Load()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
