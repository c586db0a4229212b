package main

import (
	"os"

	"github.com/formlab/formsql/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
