// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// photostocanopy uploads a directory of photos to S3, ready to be
// analysed by canopy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"rescribe.xyz/canopy"
	"rescribe.xyz/canopy/internal/pipeline"
)

const usage = `Usage: photostocanopy [-v] [-bucket bucket] photodir [prefix]

Uploads the photos in photodir to the S3 bucket, under prefix. If
prefix is omitted the last part of the photodir is used.
`

func main() {
	verbose := flag.Bool("v", false, "Verbose")
	bucket := flag.String("bucket", "", "S3 bucket to upload to")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		return
	}

	dir := flag.Arg(0)
	var prefix string
	if flag.NArg() > 1 {
		prefix = flag.Arg(1)
	} else {
		prefix = filepath.Base(dir)
	}

	var verboselog *log.Logger
	if *verbose {
		verboselog = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		var n pipeline.NullWriter
		verboselog = log.New(n, "", log.LstdFlags)
	}

	conn := &canopy.AwsConn{Bucket: *bucket, Prefix: prefix, Logger: verboselog}
	err := conn.Init()
	if err != nil {
		log.Fatalln("Failed to set up cloud connection:", err)
	}

	ctx := context.Background()

	verboselog.Println("Checking that all photos are valid in", dir)
	err = pipeline.CheckPhotos(ctx, dir)
	if err != nil {
		log.Fatalln(err)
	}

	verboselog.Println("Checking that photos haven't already been uploaded with that prefix")
	list, err := pipeline.ListPhotos(conn)
	if err != nil {
		log.Fatalln(err)
	}
	if len(list) > 0 {
		log.Fatalf("Error: There are already photos in S3 under %s", conn.PhotoPrefix())
	}

	verboselog.Println("Uploading all photos in", dir)
	err = pipeline.UploadPhotos(ctx, dir, conn)
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Uploaded photos to", conn.PhotoStorageId()+"/"+conn.PhotoPrefix())
}
