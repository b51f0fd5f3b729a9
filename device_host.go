//go:build !tinygo

package main

const deviceName = "host"
