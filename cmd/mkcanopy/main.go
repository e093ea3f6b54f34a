// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// mkcanopy sets up the S3 bucket photos are read from.
package main

import (
	"log"
	"os"

	"rescribe.xyz/canopy"
)

type MkStorager interface {
	MinimalInit() error
	MkStorage() error
}

func main() {
	if len(os.Args) > 2 {
		log.Fatal("Usage: mkcanopy [bucket]\n\nSets up the S3 bucket photos are read from\n")
	}

	var bucket string
	if len(os.Args) == 2 {
		bucket = os.Args[1]
	}

	var conn MkStorager
	conn = &canopy.AwsConn{Bucket: bucket, Logger: log.New(os.Stdout, "", 0)}
	err := conn.MinimalInit()
	if err != nil {
		log.Fatalln("Failed to set up cloud connection:", err)
	}

	err = conn.MkStorage()
	if err != nil {
		log.Fatalln("MkStorage failed:", err)
	}
}
