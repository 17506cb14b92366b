package main

import "github.com/fatih/color"

var (
	completeColour = color.New(color.FgGreen)
	pendingColour  = color.New(color.FgYellow)
	errorColour    = color.New(color.FgRed, color.Bold)
)
