package main

import "github.com/soundcult/listenparty/internal/cli"

func main() {
	cli.Execute()
}
