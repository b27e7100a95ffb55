package main

import "orbitwatch/internal/cli"

func main() {
	cli.Execute()
}
