package main

import "github.com/zijiren233/flvplay/cmd"

func main() {
	cmd.Execute()
}
