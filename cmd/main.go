package main

import (
	"os"

	"github.com/MimeLyc/batch-sub-translator/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
