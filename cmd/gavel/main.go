package main

import (
	"os"

	"github.com/gavel-review/gavel/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
