// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package canopy

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// AwsConn reads photos from, and writes results to, an S3 bucket.
// Photos are the objects directly under Prefix, and results are
// written under Prefix + "results/".
type AwsConn struct {
	// these should be set before running Init(), or left to defaults
	Region string
	Bucket string
	Prefix string
	Logger *log.Logger

	sess       *session.Session
	s3svc      *s3.S3
	downloader *s3manager.Downloader
	uploader   *s3manager.Uploader
}

// MinimalInit does the bare minimum to initialise aws services
func (a *AwsConn) MinimalInit() error {
	if a.Region == "" {
		a.Region = defaultAwsRegion
	}
	if a.Bucket == "" {
		a.Bucket = storagePhotos
	}
	if a.Prefix != "" && !strings.HasSuffix(a.Prefix, "/") {
		a.Prefix += "/"
	}
	if a.Logger == nil {
		a.Logger = log.New(os.Stdout, "", 0)
	}

	var err error
	a.sess, err = session.NewSession(&aws.Config{
		Region: aws.String(a.Region),
	})
	if err != nil {
		return fmt.Errorf("Failed to set up aws session: %w", err)
	}
	a.s3svc = s3.New(a.sess)
	a.downloader = s3manager.NewDownloader(a.sess)
	a.uploader = s3manager.NewUploader(a.sess)

	return nil
}

// Init initialises aws services, and checks that the bucket can
// be reached.
func (a *AwsConn) Init() error {
	err := a.MinimalInit()
	if err != nil {
		return err
	}

	a.Logger.Println("Checking bucket", a.Bucket)
	_, err = a.s3svc.HeadBucket(&s3.HeadBucketInput{
		Bucket: aws.String(a.Bucket),
	})
	if err != nil {
		return fmt.Errorf("Error checking bucket %s: %w", a.Bucket, err)
	}

	return nil
}

func (a *AwsConn) PhotoStorageId() string {
	return a.Bucket
}

func (a *AwsConn) PhotoPrefix() string {
	return a.Prefix
}

func (a *AwsConn) ResultStorageId() string {
	return a.Bucket
}

func (a *AwsConn) ResultPrefix() string {
	return a.Prefix + resultPrefix
}

// ListObjects lists the keys directly under prefix; objects in
// "subdirectories" of the prefix, such as results, are not included.
func (a *AwsConn) ListObjects(bucket string, prefix string) ([]string, error) {
	var names []string
	err := a.s3svc.ListObjectsV2Pages(&s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, r := range page.Contents {
			if strings.HasSuffix(*r.Key, "/") {
				continue
			}
			names = append(names, *r.Key)
		}
		return true
	})
	return names, err
}

// DeleteObjects deletes a list of objects
func (a *AwsConn) DeleteObjects(bucket string, keys []string) error {
	objs := []*s3.ObjectIdentifier{}
	for _, v := range keys {
		objs = append(objs, &s3.ObjectIdentifier{Key: aws.String(v)})
	}
	_, err := a.s3svc.DeleteObjects(&s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &s3.Delete{
			Objects: objs,
			Quiet:   aws.Bool(true),
		},
	})
	return err
}

// CreateBucket creates a new S3 bucket, doing nothing if it
// already exists
func (a *AwsConn) CreateBucket(name string) error {
	_, err := a.s3svc.CreateBucket(&s3.CreateBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		aerr, ok := err.(awserr.Error)
		if ok && (aerr.Code() == s3.ErrCodeBucketAlreadyExists || aerr.Code() == s3.ErrCodeBucketAlreadyOwnedByYou) {
			a.Logger.Println("Bucket already exists:", name)
		} else {
			return fmt.Errorf("Error creating bucket %s: %w", name, err)
		}
	}
	return nil
}

// MkStorage sets up the bucket photos are read from
func (a *AwsConn) MkStorage() error {
	return a.CreateBucket(a.Bucket)
}

func (a *AwsConn) Download(bucket string, key string, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = a.downloader.Download(f,
		&s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    &key,
		})
	if err != nil {
		_ = os.Remove(path)
	}
	return err
}

func (a *AwsConn) Upload(bucket string, key string, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = a.uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	return err
}

func (a *AwsConn) GetLogger() *log.Logger {
	return a.Logger
}

// Log records an item with the Logger. Arguments are handled
// as with fmt.Println.
func (a *AwsConn) Log(v ...interface{}) {
	a.Logger.Println(v...)
}
