package utils

import (
	"errors"
	"os"
	"regexp"
	"strings"
)

var tagChars = regexp.MustCompile("[^0-9a-zA-Z]+")

// PathIsDir returns an error if p does not exist or is not a directory.
func PathIsDir(p string) error {
	fi, err := os.Stat(p)
	if err != nil {
		return err
	}

	if !fi.IsDir() {
		return errors.New("Path " + p + " is not a directory")
	}

	return nil
}

// SanitizeTag lowercases s and collapses any run of characters that are
// not valid in a Docker tag into a single underscore.
func SanitizeTag(s string) string {
	return strings.ToLower(tagChars.ReplaceAllString(s, "_"))
}
