// Package main is the entry point of the nadc-check CLI.
package main

import (
	"os"

	_ "github.com/mattn/go-sqlite3"

	"nadc-check/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
