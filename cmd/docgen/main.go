package main

import (
	docgencmd "github.com/jonaddams/document-generator/cmd"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	docgencmd.SetVersionInfo(version, commit)
	docgencmd.Execute()
}
