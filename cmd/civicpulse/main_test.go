package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse/internal/domain/geo"
	"civicpulse/internal/domain/rollup"
)

func TestWindowFromFlags(t *testing.T) {
	w, err := windowFromFlags("2024-03-01", "", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), w.End)

	w, err = windowFromFlags("", "2024-03-01T06:00:00Z", "2024-03-01T18:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, w.End.Sub(w.Start))

	_, err = windowFromFlags("", "2024-03-01T18:00:00Z", "2024-03-01T06:00:00Z")
	assert.ErrorIs(t, err, rollup.ErrInvalidWindow)

	_, err = windowFromFlags("", "", "")
	assert.Error(t, err)

	_, err = windowFromFlags("March 1", "", "")
	assert.Error(t, err)
}

func TestResolveCommand(t *testing.T) {
	t.Setenv("GAZETTEER_PATH", "")

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"resolve", "Traffic jam at Bonaberi, DOUALA"})
	require.NoError(t, cmd.Execute())

	var result geo.LocationResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, "Douala", result.City)
	assert.Equal(t, "Littoral", result.Region)
	assert.Equal(t, geo.ConfidenceCanonical, result.Confidence)
}

func TestTagCommand_RejectsBadLimit(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"tag", "--limit", "0"})
	assert.Error(t, cmd.Execute())
}
