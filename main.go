package main

import (
	"fmt"
	"os"

	"github.com/evergreen-ci/evg-module-manager/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the evg-module-manager command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}
