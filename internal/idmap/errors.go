package idmap

import "errors"

// ErrParse marks a malformed id-map file (bad header, malformed line).
var ErrParse = errors.New("id-map parse error")

// ErrIO marks a read/write/rename failure on the id-map file.
var ErrIO = errors.New("id-map io error")
