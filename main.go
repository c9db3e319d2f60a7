package main

import "github.com/WesWeCan/mu-morphing-mirror/cmd"

func main() {
	cmd.Execute()
}
