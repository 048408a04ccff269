package main

import (
	"os"

	"pharmacy-invoice-service/cmd/invoicer/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
