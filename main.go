package main

import (
	"github.com/obscura-labs/obscura/cmd"
)

func main() {
	cmd.Execute()
}
