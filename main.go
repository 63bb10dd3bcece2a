package main

import "github.com/hazlamahedich/antiforge/cmd"

func main() {
	cmd.Execute()
}
