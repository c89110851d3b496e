// The main package for the dealercrawler executable.
package main

import (
	"github.com/autoatlas/dealercrawler/cmd"
)

func main() {
	cmd.Execute()
}
