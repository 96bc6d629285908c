package main

import "github.com/class1/graduate/cmd"

func main() {
	cmd.Execute()
}
