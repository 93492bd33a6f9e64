package models

import "errors"

// Custom errors
var (
	ErrModelNotReady      = errors.New("model not ready: call Fit first")
	ErrEmptyDataset       = errors.New("dataset is empty")
	ErrCapabilityMismatch = errors.New("batch capabilities differ from fit time")
	ErrInvalidFoldCount   = errors.New("invalid number of folds")
	ErrLengthMismatch     = errors.New("input lengths differ")
	ErrNotFound           = errors.New("record not found")
)
