// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// getcanopyresults downloads the results of a canopy analysis from S3.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"rescribe.xyz/canopy"
	"rescribe.xyz/canopy/internal/pipeline"
)

const usage = `Usage: getcanopyresults [-a] [-v] [-bucket bucket] prefix [dir]

Downloads the results of the analysis of the photos under prefix
into dir (prefix by default).

By default this downloads the results, failures and summary tables,
and the graph. With -a the overlays are downloaded too.
`

func main() {
	all := flag.Bool("a", false, "Get overlays too")
	verbose := flag.Bool("v", false, "Verbose")
	bucket := flag.String("bucket", "", "S3 bucket the photos are in")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		return
	}

	var verboselog *log.Logger
	if *verbose {
		verboselog = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		var n pipeline.NullWriter
		verboselog = log.New(n, "", log.LstdFlags)
	}

	prefix := flag.Arg(0)
	dir := prefix
	if flag.NArg() > 1 {
		dir = flag.Arg(1)
	}

	conn := &canopy.AwsConn{Bucket: *bucket, Prefix: prefix, Logger: verboselog}

	verboselog.Println("Setting up AWS session")
	err := conn.Init()
	if err != nil {
		log.Fatalln("Error setting up cloud connection:", err)
	}
	verboselog.Println("Finished setting up AWS session")

	err = pipeline.DownloadResults(dir, conn, *all)
	if err != nil {
		log.Fatalln(err)
	}
}
