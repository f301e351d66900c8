package main

import "github.com/asanlama56-stack/WebToEpub-Miyo/cmd"

func main() {
	cmd.Execute()
}
