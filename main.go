package main

import "github.com/proxlab/pvebridge/cmd"

func main() {
	cmd.Execute()
}
