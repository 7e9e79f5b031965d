package main

import "github.com/khanhnv2901/jsaudit/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
