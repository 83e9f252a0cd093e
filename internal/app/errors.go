package service

import "errors"

// ErrStopped is returned by Start once the service has been stopped.
var ErrStopped = errors.New("service stopped")
