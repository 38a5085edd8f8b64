package main

import "github.com/computehome/launcher/internal/cmd"

func main() {
	cmd.Execute()
}
