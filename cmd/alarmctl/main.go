package main

import "github.com/alarmd/alarmd/cmd/alarmctl/cmd"

func main() {
	cmd.Execute()
}
