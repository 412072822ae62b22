// Command histdump is a small diagnostic front-end over the histpack
// library: it lists pack pairs, prints one revision's ancestry, and
// imports a compressed bundle of pack pairs into a directory. It is not
// part of the importable library; construct a Store or PackReader
// directly for programmatic use.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "ls":
		err = cmdLs(os.Args[2:])
	case "show":
		err = cmdShow(os.Args[2:])
	case "import":
		err = cmdImport(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "histdump:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  histdump ls <dir>
  histdump show <dir> <name> <hex-node>
  histdump import <bundle.tar.xz> <dir>`)
}
