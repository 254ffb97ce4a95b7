// ./main.go
package main

import (
	"github.com/xkilldash9x/cartographer-cli/cmd"
)

// main is the entry point for the Cartographer CLI application.
func main() {
	// Command-line parsing, configuration loading and logger bootstrap all
	// happen inside the cmd package.
	cmd.Execute()
}
