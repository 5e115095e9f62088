package main

import "github.com/imfiit/arena/cmd/arena-cli/cmd"

func main() {
	cmd.Execute()
}
