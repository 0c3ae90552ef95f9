package main

import "coverline/internal/cli"

func main() {
	cli.Execute()
}
