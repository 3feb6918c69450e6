package main

import (
	"github.com/robotalks/streambuf/pkg/cli/sh"
	"github.com/robotalks/streambuf/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
