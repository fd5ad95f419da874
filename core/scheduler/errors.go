package scheduler

import (
	"fmt"
	"time"

	"fleetsense/core/model"
)

// NoCapacityError reports that no slot within the lookahead window could
// satisfy the booking. It is surfaced to the caller; any triggering alert
// is still emitted without an attached appointment.
type NoCapacityError struct {
	Service model.ServiceType
	From    time.Time
	Days    int
}

func (e *NoCapacityError) Error() string {
	return fmt.Sprintf("no capacity for %s within %d days of %s",
		e.Service, e.Days, e.From.Format("2006-01-02"))
}

// NotFoundError reports an unknown appointment ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("appointment %s not found", e.ID)
}
