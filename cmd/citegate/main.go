package main

import (
	"os"

	"github.com/MEKXH/citegate/cmd/citegate/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
