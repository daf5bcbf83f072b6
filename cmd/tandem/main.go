package main

import "github.com/solvelab/tandem/internal/cli"

func main() {
	cli.Execute()
}
