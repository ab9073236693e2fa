package main

import "github.com/Joelisking/projectx-client/cmd/marketctl/cmd"

func main() {
	cmd.Execute()
}
