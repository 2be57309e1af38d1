package main

import (
	"fingerprint-reader/internal/presentation/cli"
)

// version задается при сборке: -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cli.Version = version
	cli.Execute(cli.NewRootCommand())
}
