package gateway

import (
	"errors"
	"fmt"
)

// Op names the logical operation a ServiceError belongs to.
type Op string

const (
	OpAnalyze   Op = "Analyze"
	OpHistory   Op = "History"
	OpNutrition Op = "Nutrition"
	OpHealth    Op = "Health"
)

// ServiceError is the only failure the gateway returns. Status is the HTTP
// status of a non-2xx response, or 0 when the request never produced a usable
// response (transport failure, undecodable body).
type ServiceError struct {
	Op     Op
	Status int
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s failed: %d", e.Op, e.Status)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Transport reports whether the failure happened below HTTP.
func (e *ServiceError) Transport() bool {
	return e.Status == 0
}

// AsServiceError unwraps err into a *ServiceError if there is one in the chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
