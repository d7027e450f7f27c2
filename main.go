package main

import "github.com/nopxx/scrobblerd/cmd"

func main() {
	cmd.Execute()
}
