package main

import (
	"github.com/BioHazard786/liteshare/cmd"
	"github.com/BioHazard786/liteshare/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
