package main

import "github.com/agentic-research/pmemctl/cmd"

func main() {
	cmd.Execute()
}
