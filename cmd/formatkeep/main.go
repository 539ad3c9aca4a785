package main

import "github.com/formatkeep/formatkeep/internal/cli"

func main() {
	cli.Execute()
}
