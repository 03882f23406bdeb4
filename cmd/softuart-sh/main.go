package main

import (
	"github.com/robotalks/softuart/pkg/cli/sh"
	"github.com/robotalks/softuart/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
