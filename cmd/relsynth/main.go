package main

import "github.com/dbsmedya/relsynth/cmd/relsynth/cmd"

func main() {
	cmd.Execute()
}
