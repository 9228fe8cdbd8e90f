package main

import (
	"os"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
