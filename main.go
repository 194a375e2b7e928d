package main

import "github.com/lepinkainen/buyback/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
