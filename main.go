package main

import "bannerscan/cmd"

func main() {
	cmd.Execute()
}
