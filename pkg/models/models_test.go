package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validReport() PendingReport {
	return PendingReport{
		ID:          "r1",
		Operator:    OperatorMTN,
		ProblemType: ProblemOutage,
		EnqueuedAt:  time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestPendingReport_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *PendingReport)
		wantErr bool
	}{
		{name: "minimal", mutate: func(r *PendingReport) {}},
		{name: "all optional fields", mutate: func(r *PendingReport) {
			r.SignalStrength = Float(75)
			r.NetworkType = "4G"
			r.Latitude = Float(3.848)
			r.Longitude = Float(11.502)
		}},
		{name: "latitude without longitude", mutate: func(r *PendingReport) { r.Latitude = Float(-90) }},
		{name: "unknown operator", mutate: func(r *PendingReport) { r.Operator = "Vodafone" }, wantErr: true},
		{name: "empty problem type", mutate: func(r *PendingReport) { r.ProblemType = "" }, wantErr: true},
		{name: "signal above range", mutate: func(r *PendingReport) { r.SignalStrength = Float(101) }, wantErr: true},
		{name: "signal below range", mutate: func(r *PendingReport) { r.SignalStrength = Float(-1) }, wantErr: true},
		{name: "latitude out of range", mutate: func(r *PendingReport) { r.Latitude = Float(91) }, wantErr: true},
		{name: "longitude out of range", mutate: func(r *PendingReport) { r.Longitude = Float(-181) }, wantErr: true},
		{name: "network type too long", mutate: func(r *PendingReport) { r.NetworkType = "LTE-Advanced-Pro-5G" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReport()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidReport), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPendingReport_Key(t *testing.T) {
	r := validReport()
	assert.Equal(t, "r1", r.Key())

	r.ID = ""
	other := r
	assert.Equal(t, r.Key(), other.Key())
	other.Region = "Centre"
	assert.NotEqual(t, r.Key(), other.Key())
}
