package main

import (
	"github.com/khulnasoft-lab/vulnmap-api-import/cmd"
)

func main() {
	cmd.Execute()
}
