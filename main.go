package main

import "github.com/mselser95/updown-bot/cmd"

func main() {
	cmd.Execute()
}
