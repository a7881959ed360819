package config

import (
	"os"
	"strconv"
)

type Storage struct {
	AccountID     string
	AccessKey     string
	SecretKey     string
	BucketName    string
	PublicBaseURL string
}

type Config struct {
	PostgresURI string
	RedisURI    string

	InstagramBaseURL    string
	InstagramAPIVersion string

	SecretKey  string
	JWTSecret  string
	CookieName string
	AdminUser  string
	AdminPass  string

	ContentDir string
	ProxyFile  string

	// Anti-abuse pacing.
	MinDelayBetweenPosts    int // seconds between posts on one account
	MaxDailyPostsPerAccount int
	UploadTimeout           int // seconds, hard ceiling per publish attempt
	MaxAccountsPerProxy     int
	ProxyTestURL            string

	Storage Storage
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:         getEnv("POSTGRES_URI", ""),
		RedisURI:            getEnv("REDIS_URI", "localhost:6379"),
		InstagramBaseURL:    getEnv("INSTAGRAM_BASE_URL", "https://graph.facebook.com"),
		InstagramAPIVersion: getEnv("INSTAGRAM_API_VERSION", "v19.0"),
		SecretKey:           getEnv("SECRET_KEY", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		CookieName:          getEnv("COOKIE_NAME", "mediaflux_session"),
		AdminUser:           getEnv("ADMIN_USER", "admin"),
		AdminPass:           getEnv("ADMIN_PASS", ""),
		ContentDir:          getEnv("CONTENT_DIR", "./content"),
		ProxyFile:           getEnv("PROXY_FILE", "./proxies/proxies.txt"),

		MinDelayBetweenPosts:    getEnvInt("MIN_DELAY_BETWEEN_POSTS", 1800),
		MaxDailyPostsPerAccount: getEnvInt("MAX_DAILY_POSTS_PER_ACCOUNT", 8),
		UploadTimeout:           getEnvInt("UPLOAD_TIMEOUT", 300),
		MaxAccountsPerProxy:     getEnvInt("MAX_ACCOUNTS_PER_PROXY", 3),
		ProxyTestURL:            getEnv("PROXY_TEST_URL", "https://httpbin.org/ip"),

		Storage: Storage{
			AccountID:     getEnv("S3_ACCOUNT_ID", ""),
			AccessKey:     getEnv("S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("S3_SECRET_KEY", ""),
			BucketName:    getEnv("S3_BUCKET_NAME", ""),
			PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
