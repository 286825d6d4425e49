package main

import "hyperliquid-watch/internal/cli"

func main() {
	cli.Execute()
}
