// Command aegisvault manages password-protected encrypted vault files.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
