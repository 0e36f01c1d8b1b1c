package vend

import "github.com/pkg/errors"

// ErrUnknownDevice marks a device id that is not in the catalog allow-list.
// The web layer maps it to a client error; everything else coming out of the
// core is a server-side failure.
var ErrUnknownDevice = errors.New("unknown device")
