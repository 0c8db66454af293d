package main

import (
	"os"

	"github.com/tilecraft/vtcompose/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
