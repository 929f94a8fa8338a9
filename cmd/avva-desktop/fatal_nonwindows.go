//go:build !windows

package main

func showFatal(string) {}
