package main

import (
	"os"

	"github.com/e2core/e2/cli"
)

func main() {
	os.Exit(cli.Execute())
}
