package main

import (
	"fmt"
	"os"

	"github.com/sreddy75/kr8-vector/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
