package main

import (
	"github.com/atspaeth/Neurobot/pkg/cli"
)

//go-build: CGO_ENABLED=0

func main() {
	cli.Main()
}
