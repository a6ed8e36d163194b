package main

import "btc-market-pulse/internal/cli"

func main() {
	cli.Execute()
}
