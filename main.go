package main

import "gridctl/cmd"

func main() {
	cmd.Execute()
}
