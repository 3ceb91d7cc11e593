package main

import "github.com/dingclaw/dingclaw/cmd"

func main() {
	cmd.Execute()
}
