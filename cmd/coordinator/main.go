// cmd/coordinator/main.go
package main

import (
	"log"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCommand().Execute(); err != nil {
		log.Fatalf("spectro-coordinator: %v", err)
	}
}
