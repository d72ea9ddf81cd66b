// Package main is the entry point for the contactsd contacts API service.
package main

func main() {
	Execute()
}
