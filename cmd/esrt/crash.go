package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/gdamore/tcell/v2"
)

// handleCrash restores the terminal before printing the panic, then exits.
func handleCrash(screen tcell.Screen, r any) {
	if screen != nil {
		screen.Fini()
	}
	fmt.Fprintf(os.Stderr, "\r\n\x1b[31mcrash: %v\x1b[0m\r\n", r)
	fmt.Fprintf(os.Stderr, "%s\r\n", debug.Stack())
	os.Exit(1)
}

// goSafe runs fn on a new goroutine with the same crash handling.
func goSafe(screen tcell.Screen, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				handleCrash(screen, r)
			}
		}()
		fn()
	}()
}
