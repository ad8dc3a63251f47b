package main

import "github.com/concordia-platform/triage/internal/cli"

func main() {
	cli.Execute()
}
