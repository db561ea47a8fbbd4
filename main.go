package main

import (
	"os"

	"fundb/cli"
)

func main() {
	os.Exit(cli.New().Run(os.Args[1:]))
}
