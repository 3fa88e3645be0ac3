// Package main is the single-binary entrypoint for the Agora delivery
// engine.
package main

import "github.com/agora-market/agora/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
