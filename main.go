package main

import (
	"backtomatic/cmd"
)

func main() {
	cmd.Execute()
}
