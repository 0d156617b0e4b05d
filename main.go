package main

import "github.com/tomefetch/tomefetch/cmd"

func main() {
	cmd.Execute()
}
