package azure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/hillmyna/internal/credentials"
)

// IdentificationClient calls the Speaker Recognition identification API.
type IdentificationClient struct {
	rest   *restClient
	locale string
	log    *logrus.Entry

	checkInterval time.Duration
	timeout       time.Duration
}

// NewIdentificationClient creates a client for the speaker recognition resource.
func NewIdentificationClient(creds credentials.Credentials, locale string, opts ...Option) *IdentificationClient {
	if locale == "" {
		locale = "en-US"
	}
	rest := newRESTClient(creds, opts...)
	return &IdentificationClient{
		rest:          rest,
		locale:        locale,
		log:           rest.log,
		checkInterval: rest.checkInterval,
		timeout:       rest.timeout,
	}
}

// IsValidOperationID reports whether id is a canonical Azure operation id.
func IsValidOperationID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// NewProfile creates an identification profile and returns its id.
func (c *IdentificationClient) NewProfile(ctx context.Context) (string, error) {
	const op = "New profile"

	resp, err := c.rest.do(ctx, request{
		op:      op,
		method:  http.MethodPost,
		path:    "identificationProfiles",
		header:  map[string]string{"Content-Type": "application/json"},
		jsonObj: map[string]string{"locale": c.locale},
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", apiError(op, resp)
	}

	var body struct {
		ID string `json:"identificationProfileId"`
	}
	if err := decode(op, resp, &body); err != nil {
		return "", err
	}
	if body.ID == "" {
		return "", fmt.Errorf("%s: response carries no profile id", op)
	}
	c.log.Debugf("Profile ID: %s", body.ID)
	return body.ID, nil
}

// DeleteProfile deletes the given profile.
func (c *IdentificationClient) DeleteProfile(ctx context.Context, profileID string) error {
	const op = "Delete profile"

	resp, err := c.rest.do(ctx, request{
		op:     op,
		method: http.MethodDelete,
		path:   "identificationProfiles/" + url.PathEscape(profileID),
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(op, resp)
	}
	return nil
}

// GetProfile returns the status of the given profile.
func (c *IdentificationClient) GetProfile(ctx context.Context, profileID string) (*Profile, error) {
	const op = "Get profile"

	resp, err := c.rest.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "identificationProfiles/" + url.PathEscape(profileID),
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(op, resp)
	}

	var p Profile
	if err := decode(op, resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProfiles returns every profile of the subscription.
func (c *IdentificationClient) ListProfiles(ctx context.Context) ([]Profile, error) {
	const op = "Get all profiles"

	resp, err := c.rest.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "identificationProfiles",
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(op, resp)
	}

	var profiles []Profile
	if err := decode(op, resp, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// DeleteAllProfiles deletes every profile of the subscription and returns
// the ids that were deleted. Requests are paced by the client quota.
func (c *IdentificationClient) DeleteAllProfiles(ctx context.Context) ([]string, error) {
	profiles, err := c.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	deleted := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if err := c.DeleteProfile(ctx, p.ID); err != nil {
			return deleted, fmt.Errorf("delete %s after %d deletions: %w", p.ID, len(deleted), err)
		}
		deleted = append(deleted, p.ID)
	}
	return deleted, nil
}

// ResetEnrollments clears every enrollment of the profile, moving it back
// to the Enrolling state.
func (c *IdentificationClient) ResetEnrollments(ctx context.Context, profileID string) error {
	const op = "Reset enrollments"

	resp, err := c.rest.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "identificationProfiles/" + url.PathEscape(profileID) + "/reset",
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(op, resp)
	}
	return nil
}

// Enroll submits an enrollment sample for the profile and returns the id of
// the operation processing it. With shortAudio the sample may be as short as
// one second instead of five.
func (c *IdentificationClient) Enroll(ctx context.Context, profileID string, wav io.Reader, shortAudio bool) (string, error) {
	const op = "Enrollment"

	resp, err := c.rest.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "identificationProfiles/" + url.PathEscape(profileID) + "/enroll",
		query:  url.Values{"shortAudio": {strconv.FormatBool(shortAudio)}},
		header: map[string]string{"Content-Type": "application/octet-stream"},
		body:   wav,
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", apiError(op, resp)
	}
	return c.operationID(op, resp)
}

// Identify submits a sample to be matched against the candidate profiles
// and returns the id of the operation processing it.
func (c *IdentificationClient) Identify(ctx context.Context, wav io.Reader, candidateIDs []string, shortAudio bool) (string, error) {
	const op = "Identification"

	if len(candidateIDs) == 0 {
		return "", ErrNoCandidates
	}
	if len(candidateIDs) > MaxCandidates {
		return "", ErrTooManyCandidates
	}

	resp, err := c.rest.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "identify",
		query: url.Values{
			"identificationProfileIds": {strings.Join(candidateIDs, ",")},
			"shortAudio":               {strconv.FormatBool(shortAudio)},
		},
		header: map[string]string{"Content-Type": "application/octet-stream"},
		body:   wav,
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", apiError(op, resp)
	}
	return c.operationID(op, resp)
}

// operationID extracts the operation id from the Operation-Location header.
func (c *IdentificationClient) operationID(op string, resp *response) (string, error) {
	location := resp.Header.Get("Operation-Location")
	if location == "" {
		return "", fmt.Errorf("%s: response has no Operation-Location header", op)
	}
	c.log.Debugf("%s URL: %s", op, location)

	id := location[strings.LastIndex(location, "/")+1:]
	if !IsValidOperationID(id) {
		return "", fmt.Errorf("%s: %w: %q", op, ErrInvalidOperationID, id)
	}
	return id, nil
}

// OperationStatus returns the current state of an operation.
func (c *IdentificationClient) OperationStatus(ctx context.Context, operationID string) (*Operation, error) {
	const op = "Get operation status"

	if !IsValidOperationID(operationID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperationID, operationID)
	}

	resp, err := c.rest.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "operations/" + operationID,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(op, resp)
	}

	var o Operation
	if err := decode(op, resp, &o); err != nil {
		return nil, err
	}
	o.ID = operationID
	return &o, nil
}

// WaitOperation polls an operation until it succeeds or fails, the context
// is cancelled, or the client's operation timeout elapses. A failed
// operation is returned as *OperationError.
func (c *IdentificationClient) WaitOperation(ctx context.Context, operationID string) (*Operation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for operation %s: %w", operationID, ctx.Err())
		case <-ticker.C:
		}

		o, err := c.OperationStatus(ctx, operationID)
		if err != nil {
			return nil, err
		}
		c.log.Debugf("Operation %s is %s", operationID, o.Status)

		switch o.Status {
		case OperationSucceeded:
			return o, nil
		case OperationFailed:
			return o, &OperationError{OperationID: operationID, Message: o.Message}
		}
	}
}
