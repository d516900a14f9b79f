package main

import "github.com/kinship-net/kinship/internal/cli"

func main() {
	cli.Execute()
}
