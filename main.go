package main

import "github.com/net-toolbox/onboarder/cmd"

func main() {
	cmd.Execute()
}
