package main

import "chatctl/cmd"

func main() {
	cmd.Execute()
}
