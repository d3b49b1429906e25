// The main package for the tagtally executable.
package main

import (
	"github.com/pgoodall/tagtally/cmd"
)

func main() {
	cmd.Execute()
}
