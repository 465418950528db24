package main

import (
	"gatepass/cmd"

	_ "go.uber.org/automaxprocs"
)

func main() {
	cmd.Start()
}
