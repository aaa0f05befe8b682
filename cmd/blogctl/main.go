// Command blogctl drives the blog client from the command line: it reads and
// writes posts through the tag-invalidated query cache and can serve the
// in-memory fake API over HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
