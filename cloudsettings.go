// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package canopy

// This file contains various cloud account specific stuff; change this if
// you want to use the cloud functionality on your own site.

const defaultAwsRegion = `eu-west-2`

// Storage bucket names
const (
	storagePhotos = "canopyphotos"
)

// resultPrefix is added to the photo prefix to give the place results
// are stored
const resultPrefix = "results/"
