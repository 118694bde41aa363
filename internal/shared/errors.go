package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrBadRequest         = fmt.Errorf("bad request")
	ErrNotFound           = fmt.Errorf("not found")
	ErrConflict           = fmt.Errorf("conflict")
	ErrGone               = fmt.Errorf("gone")
	ErrJourneyNotFound    = fmt.Errorf("journey not found")
	ErrMissionNotFound    = fmt.Errorf("mission not found")

	// Mission errors
	ErrNotCompleted       = fmt.Errorf("mission not completed")
	ErrAlreadyDelivered   = fmt.Errorf("mission already delivered")
	ErrDeliveryInProgress = fmt.Errorf("delivery already in progress")
	ErrDeliveryFailed     = fmt.Errorf("delivery failed")
	ErrMissionLocked      = fmt.Errorf("mission requires purchase")

	// Purchase errors
	ErrAlreadyPurchased = fmt.Errorf("journey already purchased or unpaid order exists")
	ErrAlreadyPaid      = fmt.Errorf("order already paid")
	ErrOrderNotFound    = fmt.Errorf("order not found")
	ErrOrderExpired     = fmt.Errorf("order expired")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
