package main

import "github.com/klytics/licensekit/cmd"

func main() {
	cmd.Execute()
}
