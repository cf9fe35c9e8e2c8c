package main

import (
	"os"

	"smugsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
