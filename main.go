package main

import "github.com/polysquare/ci-scripts/cmd"

func main() {
	cmd.Execute()
}
