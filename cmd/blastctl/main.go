package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("blastctl failed", "error", err)
		os.Exit(1)
	}
}
