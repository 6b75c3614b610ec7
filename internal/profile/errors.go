package profile

import "errors"

// ErrNotFound is returned by Load for an unknown profile name.
var ErrNotFound = errors.New("profile not found")

// ErrInvalidProfile is returned when a profile is missing a required
// field or references a tool the registry's tool registry cannot
// resolve.
var ErrInvalidProfile = errors.New("invalid profile")
