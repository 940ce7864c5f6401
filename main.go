package main

import "github.com/nextlevelbuilder/napclaw/cmd"

func main() {
	cmd.Execute()
}
