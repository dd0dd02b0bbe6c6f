package main

import "fmt"

// Version is set at build time via ldflags
var Version = "v0.1.0"

// PrintVersion prints the current version
func PrintVersion() {
	fmt.Printf("refactor-swarm %s\n", Version)
}
