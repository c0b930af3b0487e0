package main

import "github.com/zoneguard/zoneguard/internal/cli"

func main() {
	cli.Execute()
}
