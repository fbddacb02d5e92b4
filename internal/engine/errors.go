package engine

import "errors"

var (
	// ErrNoInstallers indicates no usable installer bundles were found.
	ErrNoInstallers = errors.New("no usable installers found")

	// ErrNoExternalDisks indicates no candidate external disk is attached.
	ErrNoExternalDisks = errors.New("no external disks found")

	// ErrDiskNotFound indicates the requested disk is not a candidate.
	ErrDiskNotFound = errors.New("disk is not an eligible external disk")

	// ErrNotConfirmed indicates a destructive operation was requested
	// without confirmation.
	ErrNotConfirmed = errors.New("destructive operation not confirmed")

	// ErrDiskGone indicates the target disk disappeared mid-operation.
	ErrDiskGone = errors.New("target disk disappeared")

	// ErrDiskChanged indicates the disk no longer matches the plan.
	ErrDiskChanged = errors.New("target disk changed since planning")
)
