// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package common

import (
	"errors"
	"io/fs"
	"os"
	"time"
)

// NewestModTime returns the latest modification time among paths.
// Paths that do not exist are ignored; the zero time is returned if none exist.
//
// Usage: the source age of a job is the age of its newest source file, so a
// change to any source invalidates the outputs.
func NewestModTime(paths []string) (time.Time, error) {
	var newest time.Time
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return time.Time{}, err
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest, nil
}

// IsFresh reports whether every output exists, holds at least minBytes and
// was modified after newestSource. An empty output list is never fresh.
//
// Example:
//   - sources modified 2025-10-17 14:00, output written 15:00: fresh
//   - output written 13:00 or truncated below minBytes: stale
func IsFresh(outputs []string, minBytes int64, newestSource time.Time) (bool, error) {
	if len(outputs) == 0 {
		return false, nil
	}
	for _, p := range outputs {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return false, nil
			}
			return false, err
		}
		if info.Size() < minBytes || !info.ModTime().After(newestSource) {
			return false, nil
		}
	}
	return true, nil
}
