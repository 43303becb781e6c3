// Copyright 2024 The hashtable Authors. All rights reserved.
// Use of this source code is governed by the BSD 3-Clause License
// that can be found in the LICENSE file.

// snapdump prints the records of a hashtable snapshot, one per line, in
// the order they appear in the file.  Either snapshot encoding works.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/guycipher/hashtable/internal/snapfile"
)

var printHex = flag.Bool("x", false, "print values as hex instead of quoted strings")

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-x] snapshot\n", os.Args[0])
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
	}

	m, err := snapfile.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	defer m.Close()

	n := 0
	for {
		key, value, err := m.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "record %d: %s\n", n, err)
			os.Exit(1)
		}
		if *printHex {
			fmt.Printf("%q\t%x\n", key, value)
		} else {
			fmt.Printf("%q\t%q\n", key, value)
		}
		n++
	}
}
