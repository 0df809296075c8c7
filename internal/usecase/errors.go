package usecase

import "errors"

var (
	ErrUnknownColumn         = errors.New("unknown sort column")
	ErrNotificationsDisabled = errors.New("notifications not configured")
	ErrNoDevices             = errors.New("no registered devices")
)
