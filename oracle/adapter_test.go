package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.avinoo.ir/sso/domain"
	serrors "go.avinoo.ir/sso/errors"
)

func TestCheckAccessGrant(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "standup", r.URL.Query().Get("room_name"))
		assert.Equal(t, "guid-1", r.URL.Query().Get("user_guid"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"data":{"has_access":true,"status":"ongoing",
			"start_time":%q,"end_time":%q,"is_organizer":true,"user_type":"organizer"}}`,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}))
	defer srv.Close()

	grant, err := NewClient(srv.URL, time.Second).CheckAccess(context.Background(), "standup", "guid-1")
	require.NoError(t, err)

	assert.True(t, grant.HasAccess)
	assert.Equal(t, domain.MeetingOngoing, grant.Status)
	assert.True(t, grant.IsOrganizer)
	require.NotNil(t, grant.StartTime)
	assert.True(t, grant.StartTime.Equal(start))
	require.NotNil(t, grant.EndTime)
	assert.True(t, grant.EndTime.Equal(end))
}

func TestCheckAccessDenials(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		body      string
		reason    string
		withStart bool
	}{
		{
			name:   "no access",
			body:   `{"success":true,"data":{"has_access":false,"status":"ongoing"}}`,
			reason: "you do not have access to this meeting",
		},
		{
			name:   "meeting ended",
			body:   `{"success":true,"data":{"has_access":true,"status":"past"}}`,
			reason: "the meeting has ended",
		},
		{
			name: "meeting not started",
			body: fmt.Sprintf(`{"success":true,"data":{"has_access":true,"status":"upcoming","start_time":%q}}`,
				start.Format(time.RFC3339)),
			reason:    "the meeting has not started yet",
			withStart: true,
		},
		{
			name:   "rejection envelope",
			body:   `{"success":false,"error":"room is archived"}`,
			reason: "room is archived",
		},
		{
			name:   "rejection envelope without message",
			body:   `{"success":false}`,
			reason: "you do not have access to this meeting",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			grant, err := NewClient(srv.URL, time.Second).CheckAccess(context.Background(), "standup", "guid-1")
			assert.Nil(t, grant)

			var denied *DeniedError
			require.ErrorAs(t, err, &denied)
			assert.Equal(t, tt.reason, denied.Reason)
			if tt.withStart {
				require.NotNil(t, denied.StartTime)
				assert.True(t, denied.StartTime.Equal(start))
			}
			assert.NotErrorIs(t, err, serrors.ErrOracleUnavailable)
		})
	}
}

func TestCheckAccessServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).CheckAccess(context.Background(), "standup", "guid-1")
	assert.ErrorIs(t, err, serrors.ErrOracleUnavailable)
}

func TestCheckAccessMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).CheckAccess(context.Background(), "standup", "guid-1")
	assert.ErrorIs(t, err, serrors.ErrOracleUnavailable)
}

func TestCheckAccessTimeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	_, err := NewClient(srv.URL, 50*time.Millisecond).CheckAccess(context.Background(), "standup", "guid-1")
	assert.ErrorIs(t, err, serrors.ErrOracleUnavailable)
}

func TestCheckAccessUnreachable(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", time.Second).CheckAccess(context.Background(), "standup", "guid-1")
	assert.ErrorIs(t, err, serrors.ErrOracleUnavailable)
}
