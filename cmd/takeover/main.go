package main

import "github.com/example/takeover-week/cmd"

func main() {
	cmd.Execute()
}
