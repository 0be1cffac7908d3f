package main

import "github.com/devicehub/devicehub/client/internal/cli"

func main() {
	cli.Execute()
}
