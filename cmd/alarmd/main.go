package main

import "github.com/alarmd/alarmd/cmd/alarmd/cmd"

func main() {
	cmd.Execute()
}
