package main

import (
	"os"

	"khoomi-api-io/taxonomy/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
