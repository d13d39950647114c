package usecase

import (
	"time"

	"github.com/google/uuid"
)

// ResolveSession returns provided unchanged when it is non-empty and a new
// random UUID otherwise. Caller tokens are not validated.
func ResolveSession(provided string) string {
	if provided != "" {
		return provided
	}
	return newUUID()
}

var newUUID = func() string {
	return uuid.NewString()
}

var nowUTC = func() time.Time {
	return time.Now().UTC()
}
