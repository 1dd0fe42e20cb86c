package main

import "artscope/internal/cli"

func main() {
	cli.Execute()
}
