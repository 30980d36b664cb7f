package main

import "github.com/vietddude/dexwatch/internal/cli"

func main() {
	cli.Execute()
}
