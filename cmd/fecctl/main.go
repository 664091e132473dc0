package main

import "github.com/ddritzenhoff/fecframe/cmd/fecctl/cmd"

func main() {
	cmd.Execute()
}
