package main

import (
	"github.com/Rishabh-hub-code/babel-stream-talk/cmd"
	"github.com/Rishabh-hub-code/babel-stream-talk/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
