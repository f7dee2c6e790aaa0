package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/campuslearn/escalation-platform/internal/model"
)

// HTTPDirectory is a Directory backed by the platform's user service.
type HTTPDirectory struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDirectory creates a directory client for the given base URL.
func NewHTTPDirectory(baseURL string) (*HTTPDirectory, error) {
	if baseURL == "" {
		return nil, errors.New("directory base URL is required")
	}

	return &HTTPDirectory{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// ActiveTutors lists active tutors, optionally filtered by module.
func (d *HTTPDirectory) ActiveTutors(ctx context.Context, moduleCode string) ([]Tutor, error) {
	endpoint := d.baseURL + "/tutors?active=true"
	if moduleCode != "" && moduleCode != model.GeneralModule {
		endpoint += "&module=" + url.QueryEscape(moduleCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building directory request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling tutor directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tutor directory returned status %d", resp.StatusCode)
	}

	var tutors []Tutor
	if err := json.NewDecoder(resp.Body).Decode(&tutors); err != nil {
		return nil, fmt.Errorf("decoding tutor list: %w", err)
	}
	return tutors, nil
}

// GetUser looks up a user identity by id.
func (d *HTTPDirectory) GetUser(ctx context.Context, id string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		d.baseURL+"/users/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("building directory request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling tutor directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("user %s not found", id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tutor directory returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	return &user, nil
}
