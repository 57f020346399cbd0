package main

import "gdpetl/internal/cli"

func main() {
	cli.Execute()
}
