package service

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfg "github.com/mediaflux/hub/configs"
	"github.com/mediaflux/hub/internal/models"
	"github.com/mediaflux/hub/pkg/utils"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

func encryptedToken(t *testing.T, token string) string {
	t.Helper()
	enc, err := utils.Encrypt([]byte(token), []byte(testSecretKey))
	require.NoError(t, err)
	return enc
}

func newTestInstagramService(t *testing.T, baseURL string, ar *fakeAccountRepo, proxies ProxyService) *instagramService {
	t.Helper()
	return &instagramService{
		cfg: cfg.Config{
			InstagramBaseURL:    baseURL,
			InstagramAPIVersion: "v19.0",
			SecretKey:           testSecretKey,
		},
		ar:      ar,
		proxies: proxies,
		rng:     rand.New(rand.NewSource(3)),
		sleep:   func(ctx context.Context, d time.Duration) {},
	}
}

type stubProxyService struct {
	ProxyService

	rotated int
}

func (s *stubProxyService) GetForAccount(ctx context.Context, accountID string) (string, error) {
	return "", nil
}

func (s *stubProxyService) RotateOnError(ctx context.Context, accountID string) (string, error) {
	s.rotated++
	return "", nil
}

func TestUploadReelFullFlow(t *testing.T) {
	var createdCaption string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v19.0/ig_123/media":
			require.NoError(t, r.ParseForm())
			require.Equal(t, "REELS", r.Form.Get("media_type"))
			require.Equal(t, "secret-token", r.Form.Get("access_token"))
			require.NotEmpty(t, r.Form.Get("video_url"))
			createdCaption = r.Form.Get("caption")
			json.NewEncoder(w).Encode(map[string]string{"id": "container_1"})
		case r.Method == http.MethodGet && r.URL.Path == "/v19.0/container_1":
			json.NewEncoder(w).Encode(map[string]string{"status_code": "FINISHED", "id": "container_1"})
		case r.Method == http.MethodPost && r.URL.Path == "/v19.0/ig_123/media_publish":
			require.NoError(t, r.ParseForm())
			require.Equal(t, "container_1", r.Form.Get("creation_id"))
			json.NewEncoder(w).Encode(map[string]string{"id": "media_99"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	ar := &fakeAccountRepo{accounts: map[string]*models.Account{}}
	s := newTestInstagramService(t, server.URL, ar, &stubProxyService{})

	acc := &models.Account{
		ID:                 "acc_1",
		Username:           "tester",
		AccessToken:        encryptedToken(t, "secret-token"),
		InstagramAccountID: "ig_123",
	}

	mediaID, err := s.UploadReel(context.Background(), acc, "https://cdn.example.com/a.mp4", "hello world")
	require.NoError(t, err)
	require.Equal(t, "media_99", mediaID)
	require.Equal(t, "hello world", createdCaption)
}

func TestUploadReelRateLimitFlipsAccountToLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Application request limit reached", "code": 4},
		})
	}))
	defer server.Close()

	acc := &models.Account{
		ID:                 "acc_1",
		AccessToken:        encryptedToken(t, "secret-token"),
		InstagramAccountID: "ig_123",
		Status:             models.AccountStatusActive,
	}
	ar := &fakeAccountRepo{accounts: map[string]*models.Account{"acc_1": acc}}
	s := newTestInstagramService(t, server.URL, ar, &stubProxyService{})

	_, err := s.UploadReel(context.Background(), acc, "https://cdn.example.com/a.mp4", "x")
	require.Error(t, err)
	require.Equal(t, models.AccountStatusLimited, ar.statuses["acc_1"])
}

func TestUploadReelAuthFailureFlipsAccountToError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Invalid token", "code": 190},
		})
	}))
	defer server.Close()

	acc := &models.Account{
		ID:                 "acc_1",
		AccessToken:        encryptedToken(t, "secret-token"),
		InstagramAccountID: "ig_123",
		Status:             models.AccountStatusActive,
	}
	ar := &fakeAccountRepo{accounts: map[string]*models.Account{"acc_1": acc}}
	s := newTestInstagramService(t, server.URL, ar, &stubProxyService{})

	_, err := s.UploadReel(context.Background(), acc, "https://cdn.example.com/a.mp4", "x")
	require.Error(t, err)
	require.Equal(t, models.AccountStatusError, ar.statuses["acc_1"])
}

func TestGetMediaInsightsAbsentMetricsAreZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"name": "likes", "values": []map[string]int{{"value": 42}}},
				{"name": "reach", "values": []map[string]int{{"value": 900}}},
			},
		})
	}))
	defer server.Close()

	ar := &fakeAccountRepo{}
	s := newTestInstagramService(t, server.URL, ar, &stubProxyService{})

	acc := &models.Account{ID: "acc_1", AccessToken: encryptedToken(t, "secret-token")}
	insights, err := s.GetMediaInsights(context.Background(), "media_99", acc)
	require.NoError(t, err)
	require.Equal(t, 42, insights.Likes)
	require.Equal(t, 900, insights.Reach)
	require.Zero(t, insights.Impressions)
	require.Zero(t, insights.Shares)
}

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		status  int
		message string
		want    ErrorKind
	}{
		{http.StatusTooManyRequests, "anything", ErrRateLimited},
		{http.StatusBadRequest, "rate limit exceeded", ErrRateLimited},
		{http.StatusForbidden, "anything", ErrPermission},
		{http.StatusBadRequest, "permission denied", ErrPermission},
		{http.StatusUnauthorized, "anything", ErrInvalidToken},
		{http.StatusBadRequest, "invalid token", ErrInvalidToken},
		{http.StatusInternalServerError, "server melted", ErrTransient},
	}

	for _, tc := range cases {
		body, _ := json.Marshal(map[string]any{"error": map[string]any{"message": tc.message}})
		got := classifyHTTPError(tc.status, body)
		require.Equal(t, tc.want, got.Kind, "status %d message %q", tc.status, tc.message)
	}
}

func TestPostURL(t *testing.T) {
	require.Equal(t, "https://www.instagram.com/p/media_99/", PostURL("media_99"))
}
