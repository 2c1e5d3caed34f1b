package tasktypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskStatusJSONRoundTrip(t *testing.T) {
	for _, s := range []TaskStatus{
		TaskStatusWorking, TaskStatusInputRequired, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled,
	} {
		t.Run(string(s), func(t *testing.T) {
			encoded, err := json.Marshal(s)
			require.NoError(t, err)
			require.JSONEq(t, `"`+string(s)+`"`, string(encoded))

			var decoded TaskStatus
			require.NoError(t, json.Unmarshal(encoded, &decoded))
			require.Equal(t, s, decoded)
		})
	}
}

func TestTaskStatusUnmarshalRejectsUnknown(t *testing.T) {
	var s TaskStatus
	err := json.Unmarshal([]byte(`"bogus"`), &s)
	require.Error(t, err)
}

func TestTaskStatusIsTerminal(t *testing.T) {
	terminalCases := map[TaskStatus]bool{
		TaskStatusWorking:       false,
		TaskStatusInputRequired: false,
		TaskStatusCompleted:     true,
		TaskStatusFailed:        true,
		TaskStatusCancelled:     true,
	}
	for status, want := range terminalCases {
		require.Equal(t, want, status.IsTerminal(), "status %s", status)
	}
}

func TestCanTransitionMatrix(t *testing.T) {
	allowed := map[[2]TaskStatus]bool{
		{TaskStatusWorking, TaskStatusInputRequired}: true,
		{TaskStatusWorking, TaskStatusCompleted}:     true,
		{TaskStatusWorking, TaskStatusFailed}:        true,
		{TaskStatusWorking, TaskStatusCancelled}:     true,
		{TaskStatusInputRequired, TaskStatusWorking}: true,
		{TaskStatusInputRequired, TaskStatusCompleted}: true,
		{TaskStatusInputRequired, TaskStatusFailed}:    true,
		{TaskStatusInputRequired, TaskStatusCancelled}: true,
	}

	all := []TaskStatus{
		TaskStatusWorking, TaskStatusInputRequired, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]TaskStatus{from, to}]
			got := CanTransition(from, to)
			require.Equalf(t, want, got, "CanTransition(%s, %s)", from, to)
		}
	}
}

func TestCanTransitionRejectsSelfTransitions(t *testing.T) {
	for _, s := range []TaskStatus{
		TaskStatusWorking, TaskStatusInputRequired, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled,
	} {
		require.False(t, CanTransition(s, s), "self-transition for %s must be rejected", s)
	}
}

func TestCanTransitionRejectsFromTerminal(t *testing.T) {
	terminals := []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled}
	targets := []TaskStatus{TaskStatusWorking, TaskStatusInputRequired, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled}
	for _, from := range terminals {
		for _, to := range targets {
			require.False(t, CanTransition(from, to), "transition from terminal %s to %s must be rejected", from, to)
		}
	}
}
