package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	successColor = color.New(color.FgGreen)
	dimColor     = color.New(color.Faint)
)

func printError(format string, args ...any) {
	errorColor.Fprint(os.Stderr, "error: ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func printWarning(format string, args ...any) {
	warningColor.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

func printSuccess(format string, args ...any) {
	successColor.Printf(format+"\n", args...)
}

func printInfo(format string, args ...any) {
	dimColor.Fprintf(os.Stderr, format+"\n", args...)
}
