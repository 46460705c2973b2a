// Package main provides the entry point for the onionspider CLI.
//
// onionspider crawls Tor hidden services listed in seed files. It stores
// every fetch attempt in a persistent Work Queue so that later runs pick
// up where earlier ones stopped.
//
// Usage:
//
//	onionspider crawl --seed seeds.csv
//	onionspider status --markdown
//
// See --help for all available options.
package main

// main is the entry point for onionspider.
func main() {
	Execute()
}
