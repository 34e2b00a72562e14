// Command tdsim serves generated test data for an address space.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/sarchlab/testdata/tdsim/cmd"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
