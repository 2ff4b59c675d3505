package main

import "github.com/aaronromeo/imapvault/internal/cli"

func main() {
	cli.Execute()
}
