// Package textutil provides sanitization helpers for filenames and path
// segments so user-supplied labels can be embedded in filesystem paths
// safely.
package textutil
