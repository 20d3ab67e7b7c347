package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rmax-ai/fractald/pkg/client"
	"github.com/rmax-ai/fractald/pkg/mcp"
)

func main() {
	endpoint := flag.String("endpoint", envOrDefault("FRACTAL_ENDPOINT", client.DefaultEndpoint), "fractald base URL")
	flag.Parse()

	// stdout carries the protocol; diagnostics go to stderr
	if err := mcp.NewServer(*endpoint).Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "fractal-mcp: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
