package main

import (
	"github.com/fintellect/nexus/internal/nexusctl/cmd"
	"github.com/fintellect/nexus/internal/nexusctl/cmd/util"
)

func main() {
	util.CheckErr(cmd.NewDefaultNexusCtlCommand().Execute())
}
