package main

import "github.com/vietddude/tradeup/internal/cli"

func main() {
	cli.Execute()
}
