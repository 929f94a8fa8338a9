//go:build windows

package main

import "github.com/lxn/walk"

// GUI builds have no console, so the diagnostic also goes to a message box.
func showFatal(msg string) {
	walk.MsgBox(nil, "Avva", msg, walk.MsgBoxIconError|walk.MsgBoxOK)
}
