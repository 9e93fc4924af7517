package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"go.avinoo.ir/sso/domain"
	serrors "go.avinoo.ir/sso/errors"
)

// defaultTimeout bounds a single access check round trip.
const defaultTimeout = 10 * time.Second

// DeniedError is an explicit access denial from the oracle. It is distinct
// from ErrOracleUnavailable: a denial means the oracle answered and said no.
type DeniedError struct {
	Reason    string
	StartTime *time.Time
}

func (e *DeniedError) Error() string {
	return e.Reason
}

// accessResponse mirrors the oracle's JSON envelope.
type accessResponse struct {
	Success bool        `json:"success"`
	Data    *accessData `json:"data"`
	Error   string      `json:"error"`
}

type accessData struct {
	HasAccess   bool                 `json:"has_access"`
	Status      domain.MeetingStatus `json:"status"`
	StartTime   *time.Time           `json:"start_time"`
	EndTime     *time.Time           `json:"end_time"`
	IsOrganizer bool                 `json:"is_organizer"`
	UserType    string               `json:"user_type"`
}

// Client queries the external meeting access oracle over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an oracle client. A non-positive timeout falls back to
// ten seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// CheckAccess asks the oracle whether a user may join a room.
//
// An answered denial (no access, ended, not yet started) returns a
// *DeniedError. Transport failures, non-2xx statuses, and unparseable bodies
// return an error wrapping serrors.ErrOracleUnavailable so the caller can
// apply its fallback policy.
func (c *Client) CheckAccess(ctx context.Context, roomName, userGUID string) (*domain.AccessGrant, error) {
	q := url.Values{}
	q.Set("room_name", roomName)
	q.Set("user_guid", userGUID)
	endpoint := c.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", serrors.ErrOracleUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("room", roomName).Msg("access oracle request failed")
		return nil, fmt.Errorf("%w: %v", serrors.ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Ctx(ctx).Warn().Int("status", resp.StatusCode).Str("room", roomName).Msg("access oracle returned non-success status")
		return nil, fmt.Errorf("%w: unexpected status %d", serrors.ErrOracleUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", serrors.ErrOracleUnavailable, err)
	}

	var payload accessResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", serrors.ErrOracleUnavailable, err)
	}

	if !payload.Success || payload.Data == nil {
		reason := payload.Error
		if reason == "" {
			reason = "you do not have access to this meeting"
		}
		return nil, &DeniedError{Reason: reason}
	}

	data := payload.Data
	if !data.HasAccess {
		return nil, &DeniedError{Reason: "you do not have access to this meeting"}
	}

	switch data.Status {
	case domain.MeetingPast:
		return nil, &DeniedError{Reason: "the meeting has ended"}
	case domain.MeetingUpcoming:
		return nil, &DeniedError{
			Reason:    "the meeting has not started yet",
			StartTime: data.StartTime,
		}
	}

	return &domain.AccessGrant{
		HasAccess:   true,
		Status:      data.Status,
		StartTime:   data.StartTime,
		EndTime:     data.EndTime,
		IsOrganizer: data.IsOrganizer,
		UserType:    data.UserType,
	}, nil
}
