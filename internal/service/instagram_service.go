package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	cfg "github.com/mediaflux/hub/configs"
	"github.com/mediaflux/hub/internal/models"
	"github.com/mediaflux/hub/internal/repository"
	"github.com/mediaflux/hub/internal/transfer"
	"github.com/mediaflux/hub/pkg/utils"
)

// ErrorKind classifies remote publish failures into the buckets that drive
// account state transitions.
type ErrorKind int

const (
	ErrTransient ErrorKind = iota
	ErrRateLimited
	ErrPermission
	ErrInvalidToken
)

type RemoteError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote publish error (status %d): %s", e.Status, e.Message)
}

// ErrProcessingTimeout marks the retryable case where the remote platform
// never reached a terminal container state within the wait budget.
var ErrProcessingTimeout = errors.New("container processing timed out")

const (
	processingPollInterval = 10 * time.Second
	processingMaxWait      = 300 * time.Second
)

// Pacing bounds, deliberate pauses rather than retries.
const (
	preCreateDelayMin  = 2 * time.Second
	preCreateDelayMax  = 8 * time.Second
	prePublishDelayMin = 5 * time.Second
	prePublishDelayMax = 15 * time.Second
)

var browserUserAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
}

type InstagramService interface {
	UploadReel(ctx context.Context, acc *models.Account, videoURL, caption string) (mediaID string, err error)
	CreateContainer(ctx context.Context, acc *models.Account, videoURL, caption, accessToken, proxyURL string) (string, error)
	WaitForProcessing(ctx context.Context, containerID, accessToken, proxyURL string) (bool, error)
	PublishContainer(ctx context.Context, acc *models.Account, containerID, accessToken, proxyURL string) (string, error)
	GetMediaInsights(ctx context.Context, mediaID string, acc *models.Account) (*transfer.MediaInsights, error)
}

type instagramService struct {
	cfg     cfg.Config
	ar      repository.AccountRepository
	proxies ProxyService
	rng     *rand.Rand
	sleep   func(ctx context.Context, d time.Duration)
}

func NewInstagramService(config cfg.Config, ar repository.AccountRepository, proxies ProxyService, rng *rand.Rand) InstagramService {
	return &instagramService{
		cfg:     config,
		ar:      ar,
		proxies: proxies,
		rng:     rng,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// RandomUserAgent picks a browser identity, used both per-request and as the
// persistent identity pinned to a new account.
func RandomUserAgent(rng *rand.Rand) string {
	return browserUserAgents[rng.Intn(len(browserUserAgents))]
}

// PostURL derives the public permalink for a published media id.
func PostURL(mediaID string) string {
	return fmt.Sprintf("https://www.instagram.com/p/%s/", mediaID)
}

func (s *instagramService) baseURL() string {
	return fmt.Sprintf("%s/%s", s.cfg.InstagramBaseURL, s.cfg.InstagramAPIVersion)
}

func (s *instagramService) httpClient(proxyURL string) *http.Client {
	client := &http.Client{Timeout: 60 * time.Second}
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
		}
	}
	return client
}

func (s *instagramService) randomDelay(min, max time.Duration) time.Duration {
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}

// UploadReel runs the full publish sequence: create container, wait for
// remote processing, publish. Deliberate pacing pauses precede the create
// and publish calls.
func (s *instagramService) UploadReel(ctx context.Context, acc *models.Account, videoURL, caption string) (string, error) {
	proxyURL, err := s.proxies.GetForAccount(ctx, acc.ID)
	if err != nil {
		slog.Info(err.Error())
		proxyURL = ""
	}

	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("decrypting access token: %w", err)
	}

	s.sleep(ctx, s.randomDelay(preCreateDelayMin, preCreateDelayMax))

	containerID, err := s.CreateContainer(ctx, acc, videoURL, caption, accessToken, proxyURL)
	if err != nil {
		s.handleRemoteError(ctx, err, acc.ID, proxyURL)
		return "", err
	}
	slog.Info("container created", "username", acc.Username, "container_id", containerID)

	finished, err := s.WaitForProcessing(ctx, containerID, accessToken, proxyURL)
	if err != nil {
		s.handleRemoteError(ctx, err, acc.ID, proxyURL)
		return "", err
	}
	if !finished {
		return "", ErrProcessingTimeout
	}

	s.sleep(ctx, s.randomDelay(prePublishDelayMin, prePublishDelayMax))

	mediaID, err := s.PublishContainer(ctx, acc, containerID, accessToken, proxyURL)
	if err != nil {
		s.handleRemoteError(ctx, err, acc.ID, proxyURL)
		return "", err
	}

	slog.Info("reel published", "username", acc.Username, "media_id", mediaID, "url", PostURL(mediaID))
	return mediaID, nil
}

// CreateContainer stages the media on the remote platform and returns the
// container id.
func (s *instagramService) CreateContainer(ctx context.Context, acc *models.Account, videoURL, caption, accessToken, proxyURL string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", s.baseURL(), acc.InstagramAccountID)

	form := url.Values{}
	form.Set("access_token", accessToken)
	form.Set("caption", caption)
	form.Set("media_type", "REELS")
	form.Set("video_url", videoURL)
	form.Set("share_to_feed", "true")
	form.Set("thumb_offset", fmt.Sprintf("%d", 1000+s.rng.Intn(4000)))

	var result transfer.ContainerResponse
	if err := s.postForm(ctx, endpoint, form, acc.UserAgent, proxyURL, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &RemoteError{Kind: ErrTransient, Message: "no container id in response"}
	}
	return result.ID, nil
}

// WaitForProcessing polls the container status every 10 seconds until the
// remote platform reports a terminal state. Returns false without error when
// the wait budget runs out, which the caller treats as retryable.
func (s *instagramService) WaitForProcessing(ctx context.Context, containerID, accessToken, proxyURL string) (bool, error) {
	endpoint := fmt.Sprintf("%s/%s?access_token=%s&fields=status_code",
		s.baseURL(), containerID, url.QueryEscape(accessToken))

	deadline := time.Now().Add(processingMaxWait)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		var status transfer.ContainerStatus
		err := s.getJSON(ctx, endpoint, "", proxyURL, &status)
		if err != nil {
			// Poll errors are not terminal, keep waiting.
			slog.Warn("container status check failed", "container_id", containerID, "err", err)
		} else {
			switch status.StatusCode {
			case transfer.StatusFinished:
				return true, nil
			case transfer.StatusError:
				return false, &RemoteError{Kind: ErrTransient, Message: "remote processing failed"}
			case transfer.StatusInProgress, transfer.StatusPublished:
				// keep waiting
			}
		}

		s.sleep(ctx, processingPollInterval)
	}

	slog.Warn("container processing timed out", "container_id", containerID)
	return false, nil
}

// PublishContainer turns a processed container into a live post.
func (s *instagramService) PublishContainer(ctx context.Context, acc *models.Account, containerID, accessToken, proxyURL string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", s.baseURL(), acc.InstagramAccountID)

	form := url.Values{}
	form.Set("access_token", accessToken)
	form.Set("creation_id", containerID)

	var result transfer.PublishResponse
	if err := s.postForm(ctx, endpoint, form, acc.UserAgent, proxyURL, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &RemoteError{Kind: ErrTransient, Message: "no media id in publish response"}
	}
	return result.ID, nil
}

// GetMediaInsights fetches engagement counters for a published post. Metrics
// absent from the response are zero, not errors.
func (s *instagramService) GetMediaInsights(ctx context.Context, mediaID string, acc *models.Account) (*transfer.MediaInsights, error) {
	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("decrypting access token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/insights?metric=%s&access_token=%s",
		s.baseURL(), mediaID,
		"impressions,reach,likes,comments,shares,saves,profile_visits,follows",
		url.QueryEscape(accessToken))

	var result transfer.InsightsResponse
	if err := s.getJSON(ctx, endpoint, acc.UserAgent, acc.ProxyURL, &result); err != nil {
		return nil, err
	}

	insights := &transfer.MediaInsights{}
	for _, metric := range result.Data {
		if len(metric.Values) == 0 {
			continue
		}
		value := metric.Values[0].Value
		switch metric.Name {
		case "impressions":
			insights.Impressions = value
		case "reach":
			insights.Reach = value
		case "likes":
			insights.Likes = value
		case "comments":
			insights.Comments = value
		case "shares":
			insights.Shares = value
		case "saves":
			insights.Saves = value
		case "profile_visits":
			insights.ProfileVisits = value
		case "follows":
			insights.Follows = value
		}
	}
	return insights, nil
}

func (s *instagramService) postForm(ctx context.Context, endpoint string, form url.Values, userAgent, proxyURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.setHeaders(req, userAgent)

	return s.doJSON(req, proxyURL, out)
}

func (s *instagramService) getJSON(ctx context.Context, endpoint, userAgent, proxyURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	s.setHeaders(req, userAgent)

	return s.doJSON(req, proxyURL, out)
}

func (s *instagramService) setHeaders(req *http.Request, userAgent string) {
	if userAgent == "" {
		userAgent = browserUserAgents[s.rng.Intn(len(browserUserAgents))]
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
}

func (s *instagramService) doJSON(req *http.Request, proxyURL string, out any) error {
	resp, err := s.httpClient(proxyURL).Do(req)
	if err != nil {
		return &RemoteError{Kind: ErrTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Kind: ErrTransient, Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return classifyHTTPError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &RemoteError{Kind: ErrTransient, Status: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}

func classifyHTTPError(status int, body []byte) *RemoteError {
	message := "unknown error"
	var apiErr transfer.APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}

	kind := ErrTransient
	lower := strings.ToLower(message)
	switch {
	case status == http.StatusTooManyRequests || strings.Contains(lower, "rate limit"):
		kind = ErrRateLimited
	case status == http.StatusForbidden || strings.Contains(lower, "permission"):
		kind = ErrPermission
	case status == http.StatusUnauthorized || strings.Contains(lower, "invalid token"):
		kind = ErrInvalidToken
	}

	return &RemoteError{Kind: kind, Status: status, Message: message}
}

// handleRemoteError applies the account/proxy consequences of a classified
// failure: rate limits flip the account to limited, auth and permission
// problems flip it to error, transport failures rotate its proxy. The task
// retry path is unaffected; that is the scheduler's decision.
func (s *instagramService) handleRemoteError(ctx context.Context, err error, accountID, proxyURL string) {
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		return
	}

	switch remoteErr.Kind {
	case ErrRateLimited:
		slog.Warn("rate limited, marking account limited", "account_id", accountID)
		if err := s.ar.SetStatus(ctx, accountID, models.AccountStatusLimited); err != nil {
			slog.Info(err.Error())
		}
	case ErrPermission, ErrInvalidToken:
		slog.Warn("auth failure, marking account errored", "account_id", accountID, "reason", remoteErr.Message)
		if err := s.ar.SetStatus(ctx, accountID, models.AccountStatusError); err != nil {
			slog.Info(err.Error())
		}
	case ErrTransient:
		if remoteErr.Status == 0 && proxyURL != "" {
			// Transport-level failure: suspect the egress and rotate it.
			if _, err := s.proxies.RotateOnError(ctx, accountID); err != nil {
				slog.Info(err.Error())
			}
		}
	}
}
