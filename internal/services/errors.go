package services

import "errors"

// Data availability errors
var (
	// Upstream query succeeded but matched no rows
	ErrNoData = errors.New("no data available for the requested period")
)

// Catalog errors
var (
	ErrUnknownSeries      = errors.New("unknown series code")
	ErrUnknownIndicator   = errors.New("unknown indicator")
	ErrUnknownModality    = errors.New("unknown credit modality")
	ErrUnknownLocation    = errors.New("unknown location")
	ErrUnknownInstitution = errors.New("unknown institution")
	ErrUnknownVariable    = errors.New("unknown variable")
)

// Request validation errors
var (
	ErrInvalidPeriod = errors.New("invalid period: end precedes start")
	ErrPeriodTooLong = errors.New("period exceeds the maximum allowed span")
	ErrInvalidScope  = errors.New("invalid location scope")
	ErrInvalidMonths = errors.New("invalid month count")
)

// General errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
