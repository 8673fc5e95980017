package main

import "thehub/internal/cli"

func main() {
	cli.Execute()
}
