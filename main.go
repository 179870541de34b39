package main

import (
	"github.com/gridmix/gridmix/cmd"
)

func main() {
	cmd.Execute()
}
