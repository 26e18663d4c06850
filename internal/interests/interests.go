package interests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/internal/config"
)

// interestWeights maps known interest tags to their ranking weights.
// Unknown tags fall back to 1.0.
var interestWeights = map[string]float64{
	"art":         1.2,
	"gaming":      1.1,
	"sports":      1.3,
	"comics":      1.0,
	"music":       1.4,
	"politics":    1.5,
	"photography": 1.2,
	"science":     1.6,
	"news":        1.3,
	"technology":  1.4,
	"food":        1.1,
	"travel":      1.2,
	"fashion":     1.0,
	"culture":     1.1,
	"books":       1.0,
	"comedy":      1.1,
	"dev":         1.3,
	"animals":     1.0,
	"business":    1.2,
	"education":   1.4,
}

// interestVariations maps common bio phrasings to canonical tags.
var interestVariations = map[string]string{
	"tech":       "technology",
	"photo":      "photography",
	"gamer":      "gaming",
	"artist":     "art",
	"chef":       "food",
	"developer":  "dev",
	"programmer": "dev",
	"coder":      "dev",
}

// DefaultInterests are used for users with no stored preferences.
var DefaultInterests = []string{"news", "technology", "culture"}

const maxBioInterests = 5

// Client fetches declared user interests from the external preferences API.
// All calls are authenticated with a caller-supplied bearer token; an empty
// token is treated as "no usable interests", never as an error.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

func NewClient(cfg *config.InterestsConfig, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type preferencesResponse struct {
	Interests struct {
		Tags []string `json:"tags"`
	} `json:"interests"`
}

type profileResponse struct {
	Description string `json:"description"`
}

// GetInterests returns the user's declared interest tags. It tries the
// preferences endpoint first, then falls back to extracting tags from the
// profile bio, then to DefaultInterests. Transport failures degrade to
// defaults rather than surfacing an error.
func (c *Client) GetInterests(ctx context.Context, userID, authToken string) []string {
	if authToken == "" {
		return nil
	}

	var prefs preferencesResponse
	if err := c.getJSON(ctx, c.baseURL+"/v1/preferences", authToken, &prefs); err == nil {
		if len(prefs.Interests.Tags) > 0 {
			c.logger.WithFields(logrus.Fields{
				"user_id":   userID,
				"interests": len(prefs.Interests.Tags),
			}).Debug("Fetched interests from preferences")
			return prefs.Interests.Tags
		}
	} else {
		c.logger.WithError(err).WithField("user_id", userID).Debug("Preferences fetch failed")
	}

	var profile profileResponse
	url := fmt.Sprintf("%s/v1/users/%s/profile", c.baseURL, userID)
	if err := c.getJSON(ctx, url, authToken, &profile); err == nil {
		if found := ExtractFromBio(profile.Description); len(found) > 0 {
			c.logger.WithFields(logrus.Fields{
				"user_id":   userID,
				"interests": len(found),
			}).Debug("Extracted interests from profile bio")
			return found
		}
	}

	c.logger.WithField("user_id", userID).Debug("No interests found, using defaults")
	return append([]string(nil), DefaultInterests...)
}

// GetPreferences returns the raw preferences document, or an empty map on
// any failure.
func (c *Client) GetPreferences(ctx context.Context, userID, authToken string) map[string]interface{} {
	if authToken == "" {
		return map[string]interface{}{}
	}

	var prefs map[string]interface{}
	if err := c.getJSON(ctx, c.baseURL+"/v1/preferences", authToken, &prefs); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("Failed to fetch preferences")
		return map[string]interface{}{}
	}
	return prefs
}

// UpdateInterests replaces the user's declared interest tags.
func (c *Client) UpdateInterests(ctx context.Context, userID string, tags []string, authToken string) error {
	if authToken == "" {
		return fmt.Errorf("auth token required to update interests")
	}

	payload := map[string]interface{}{
		"interests": map[string]interface{}{"tags": tags},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/v1/preferences/interests", bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req, authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("interests update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("interests update returned status %d", resp.StatusCode)
	}

	c.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"interests": tags,
	}).Info("Updated user interests")
	return nil
}

func (c *Client) getJSON(ctx context.Context, url, authToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s returned status %d", url, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setHeaders(req *http.Request, authToken string) {
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("Content-Type", "application/json")
}

// ExtractFromBio scans free-form bio text for known interest tags and
// common variations, capped at maxBioInterests.
func ExtractFromBio(bio string) []string {
	if bio == "" {
		return nil
	}

	lower := strings.ToLower(bio)
	seen := make(map[string]bool)
	var found []string

	add := func(tag string) {
		if !seen[tag] && len(found) < maxBioInterests {
			seen[tag] = true
			found = append(found, tag)
		}
	}

	for tag := range interestWeights {
		if strings.Contains(lower, tag) || strings.Contains(lower, "#"+tag) {
			add(tag)
		}
	}
	for variation, tag := range interestVariations {
		if strings.Contains(lower, variation) {
			add(tag)
		}
	}

	return found
}

// Weighted maps each interest tag to its ranking weight.
func Weighted(tags []string) map[string]float64 {
	weighted := make(map[string]float64, len(tags))
	for _, tag := range tags {
		weight, ok := interestWeights[tag]
		if !ok {
			weight = 1.0
		}
		weighted[tag] = weight
	}
	return weighted
}

// Similarity computes the Jaccard similarity between two interest sets.
func Similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(a))
	for _, tag := range a {
		setA[tag] = true
	}
	union := make(map[string]bool, len(a)+len(b))
	for tag := range setA {
		union[tag] = true
	}

	intersection := 0
	setB := make(map[string]bool, len(b))
	for _, tag := range b {
		if setB[tag] {
			continue
		}
		setB[tag] = true
		if setA[tag] {
			intersection++
		}
		union[tag] = true
	}

	return float64(intersection) / float64(len(union))
}

// DiversityScore measures how varied a user's interests are, in [0, 1].
func DiversityScore(tags []string) float64 {
	if len(tags) == 0 {
		return 0.0
	}

	unique := make(map[string]bool, len(tags))
	for _, tag := range tags {
		unique[tag] = true
	}

	diversity := float64(len(unique)) / float64(len(tags))
	switch {
	case len(unique) >= 5:
		diversity += 0.2
	case len(unique) >= 3:
		diversity += 0.1
	}
	if diversity > 1.0 {
		diversity = 1.0
	}
	return diversity
}
