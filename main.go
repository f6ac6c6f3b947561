package main

import (
	"github.com/OpenCHAMI/wattbox/cmd"
)

func main() {
	cmd.Execute()
}
