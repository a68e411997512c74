// Package models holds the report types shared by the queue, the submitter and the UI.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Operators accepted by the ingestion service. "Other" covers everything else.
const (
	OperatorOrange  = "Orange"
	OperatorMTN     = "MTN"
	OperatorNexttel = "Nexttel"
	OperatorCamtel  = "Camtel"
	OperatorOther   = "Other"
)

// Problem catalogue.
const (
	ProblemCallFailure  = "Call impossible"
	ProblemSMS          = "SMS not received or sent"
	ProblemSlowInternet = "Slow or unavailable internet"
	ProblemOutage       = "Network outage"
)

// Operators lists the operator catalogue in display order.
var Operators = []string{OperatorOrange, OperatorMTN, OperatorNexttel, OperatorCamtel, OperatorOther}

// ProblemTypes lists the problem catalogue in display order.
var ProblemTypes = []string{ProblemCallFailure, ProblemSMS, ProblemSlowInternet, ProblemOutage}

// NetworkTypes are the radio technologies offered by the capture prompt.
var NetworkTypes = []string{"2G", "3G", "4G", "5G", "wifi", "unknown"}

const maxNetworkTypeLen = 16

// ErrInvalidReport is wrapped by every validation failure.
var ErrInvalidReport = errors.New("invalid report")

// PendingReport is a report that has not been confirmed by the ingestion service.
// It is never modified after it is enqueued.
type PendingReport struct {
	ID             string    `json:"id"`
	Operator       string    `json:"operator"`
	ProblemType    string    `json:"problem_type"`
	SignalStrength *float64  `json:"signal_strength,omitempty"`
	NetworkType    string    `json:"network_type,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	Description    string    `json:"description,omitempty"`
	Region         string    `json:"region,omitempty"`
	EnqueuedAt     time.Time `json:"timestamp"`
}

// Validate checks the catalogue fields and the numeric ranges.
func (r PendingReport) Validate() error {
	if !contains(Operators, r.Operator) {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidReport, r.Operator)
	}
	if !contains(ProblemTypes, r.ProblemType) {
		return fmt.Errorf("%w: unknown problem type %q", ErrInvalidReport, r.ProblemType)
	}
	if r.SignalStrength != nil && (*r.SignalStrength < 0 || *r.SignalStrength > 100) {
		return fmt.Errorf("%w: signal strength %v out of [0,100]", ErrInvalidReport, *r.SignalStrength)
	}
	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		return fmt.Errorf("%w: latitude %v out of [-90,90]", ErrInvalidReport, *r.Latitude)
	}
	if r.Longitude != nil && (*r.Longitude < -180 || *r.Longitude > 180) {
		return fmt.Errorf("%w: longitude %v out of [-180,180]", ErrInvalidReport, *r.Longitude)
	}
	if len(r.NetworkType) > maxNetworkTypeLen {
		return fmt.Errorf("%w: network type %q too long", ErrInvalidReport, r.NetworkType)
	}
	return nil
}

// Key identifies the report inside a queue. Records written before IDs were
// assigned fall back to their JSON encoding.
func (r PendingReport) Key() string {
	if r.ID != "" {
		return r.ID
	}
	b, _ := json.Marshal(r)
	return string(b)
}

// SyncOutcome summarizes one synchronization run.
type SyncOutcome struct {
	Success bool   `json:"success"`
	Synced  int    `json:"synced"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// Float returns a pointer to v, for the optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
