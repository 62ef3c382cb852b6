package main

import "github.com/turtacn/dashgate/cmd/cli"

func main() {
	cli.Execute()
}
