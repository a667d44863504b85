package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge_NeverRegresses(t *testing.T) {
	status := StatusSending
	for _, next := range []Status{StatusSent, StatusDelivered, StatusSent} {
		status = Merge(status, next)
	}
	assert.Equal(t, StatusDelivered, status)
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		current  Status
		incoming Status
		want     Status
	}{
		{"sending to sent", StatusSending, StatusSent, StatusSent},
		{"skip ahead to read", StatusSending, StatusRead, StatusRead},
		{"duplicate delivered", StatusDelivered, StatusDelivered, StatusDelivered},
		{"delivered to failed", StatusDelivered, StatusFailed, StatusFailed},
		{"read is terminal", StatusRead, StatusFailed, StatusRead},
		{"failed is terminal", StatusFailed, StatusSent, StatusFailed},
		{"unknown incoming ignored", StatusSent, Status("bogus"), StatusSent},
		{"unknown current replaced", Status(""), StatusSent, StatusSent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.current, tt.incoming))
		})
	}
}

func TestStatusIcon_UnknownFallsBackToFailed(t *testing.T) {
	assert.Equal(t, StatusFailed.Icon(), Status("weird").Icon())
	assert.NotEqual(t, StatusSent.Icon(), StatusDelivered.Icon())
}
