package main

import "comitebot/cmd"

func main() {
	cmd.Execute()
}
