package model

import "errors"

var (
	// ErrNotFound means a required input or external fragment file is missing.
	ErrNotFound = errors.New("not found")
	// ErrIOFailure means a file exists but could not be read.
	ErrIOFailure = errors.New("io failure")
	// ErrLaunchFailure means the external application did not start.
	ErrLaunchFailure = errors.New("launch failure")
	// ErrTimeoutWaiting means the completion marker never appeared.
	ErrTimeoutWaiting = errors.New("timed out waiting for completion")
	// ErrTokenCollision means a value would be mistaken for a template token.
	ErrTokenCollision = errors.New("token collision")
)
