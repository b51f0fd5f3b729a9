//go:build tinygo && rp2

package main

const deviceName = "pico"
