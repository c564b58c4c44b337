package main

import "github.com/go-janitor/janitor/cmd"

func main() {
	cmd.Execute()
}
