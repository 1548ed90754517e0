package main

import (
	"os"

	"github.com/smartgarden/gardend/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
