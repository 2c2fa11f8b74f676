package main

import (
	"github.com/edgeflux/tempagent/pkg/tasks"
)

func main() {
	tasks.Execute()
}
