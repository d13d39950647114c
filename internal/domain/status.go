package domain

import "time"

// StatusCheck is a client ping recorded by the status endpoint.
type StatusCheck struct {
	ID         string
	ClientName string
	Timestamp  time.Time
}
