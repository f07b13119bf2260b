package main

import "github.com/pvesely/mbox-absence/cmd"

func main() {
	cmd.Execute()
}
