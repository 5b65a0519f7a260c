package main

import "github.com/kozaktomas/trip-book/cmd"

func main() {
	cmd.Execute()
}
