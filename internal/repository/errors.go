// Package repository wraps the document store with typed access per
// collection. Errors from the store pass through unchanged so callers can
// match store.ErrNotFound; the sentinels below cover the cases the store
// itself cannot detect.
package repository

import "errors"

// ErrEmailExists is returned when registering an email that is already
// bound to another account. Handlers should translate this into a 200
// "already registered" reply for public sign-up and a 409 elsewhere.
var ErrEmailExists = errors.New("email already exists")
