package main

import (
	"fmt"
	"os"

	"github.com/mwantia/gophotos/cmd/gophotos/cli"
	"github.com/mwantia/gophotos/cmd/gophotos/cli/client"
	"github.com/mwantia/gophotos/cmd/gophotos/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	info := cli.VersionInfo{
		Version: version,
		Commit:  commit,
	}
	root := cli.NewRootCommand(info)

	root.AddCommand(cli.NewVersionCommand(info))

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())

	root.AddCommand(client.NewLibraryCommand())

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
