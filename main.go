package main

import (
	"kwadrop/cmd"
)

func main() {
	cmd.Execute()
}
