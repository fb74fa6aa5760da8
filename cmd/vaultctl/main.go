package main

import (
	"os"

	"github.com/dmitrijs2005/gophvault/internal/vaultctl"
)

func main() {
	os.Exit(vaultctl.Execute())
}
