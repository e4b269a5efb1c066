package config

import (
	"os"
	"strings"
	"sync"
	"time"
)

type Config struct {
	TickTickBaseURL     string
	TickTickToken       string
	OpenAIEndpoint      string
	OpenAIModel         string
	OpenAIAPIKey        string
	TelegramBotToken    string
	TelegramAllowedIDs  []int64
	ListenLogLevel      string
	Mode                string
	LocalHost           string
	LocalPort           int
	DBPath              string
	CacheDir            string
	TimezoneOffsetHours int
	ProjectCacheTTL     time.Duration
	HTTPTimeout         time.Duration
}

var (
	cacheTTL   = 10 * time.Second
	nowFunc    = time.Now
	cacheMu    sync.RWMutex
	cachedCfg  Config
	cachedAt   time.Time
	cacheValid bool
)

func LoadConfig() Config {
	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = nowFunc()
	cacheValid = true
	cacheMu.Unlock()
	return cfg
}

func GetConfig() *Config {
	now := nowFunc()
	cacheMu.RLock()
	valid := cacheValid && now.Sub(cachedAt) < cacheTTL
	if valid {
		out := cachedCfg
		cacheMu.RUnlock()
		return &out
	}
	cacheMu.RUnlock()

	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = now
	cacheValid = true
	cacheMu.Unlock()

	out := cfg
	return &out
}

func loadFromEnv() Config {
	base := os.Getenv("TASKPILOT_TICKTICK_BASE_URL")
	if base == "" {
		base = "https://api.ticktick.com/open/v1"
	}

	level := os.Getenv("TASKPILOT_LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	mode := os.Getenv("TASKPILOT_MODE")
	if mode == "" {
		mode = "serve"
	}

	localHost := os.Getenv("TASKPILOT_LOCAL_HOST")
	if localHost == "" {
		localHost = "127.0.0.1"
	}
	localPort := 4732
	if p := os.Getenv("TASKPILOT_LOCAL_PORT"); p != "" {
		if n := atoiOrDefault(p, 4732); n > 0 {
			localPort = n
		}
	}

	tzOffset := 3
	if v := strings.TrimSpace(os.Getenv("TASKPILOT_TZ_OFFSET_HOURS")); v != "" {
		neg := strings.HasPrefix(v, "-")
		if n := atoiOrDefault(strings.TrimPrefix(v, "-"), -1); n >= 0 {
			if neg {
				tzOffset = -n
			} else {
				tzOffset = n
			}
		}
	}

	projectTTLHours := atoiOrDefault(os.Getenv("TASKPILOT_PROJECT_CACHE_TTL_HOURS"), 24)
	if projectTTLHours < 1 {
		projectTTLHours = 24
	}

	httpTimeoutSecs := atoiOrDefault(os.Getenv("TASKPILOT_HTTP_TIMEOUT_SECONDS"), 30)
	if httpTimeoutSecs < 1 {
		httpTimeoutSecs = 30
	}

	openAIModel := os.Getenv("OPENAI_MODEL")
	if openAIModel == "" {
		openAIModel = "gpt-4o-mini"
	}

	return Config{
		TickTickBaseURL:     base,
		TickTickToken:       os.Getenv("TASKPILOT_TICKTICK_TOKEN"),
		OpenAIEndpoint:      os.Getenv("OPENAI_ENDPOINT"),
		OpenAIModel:         openAIModel,
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		TelegramBotToken:    os.Getenv("TASKPILOT_TELEGRAM_BOT_TOKEN"),
		TelegramAllowedIDs:  parseIDList(os.Getenv("TASKPILOT_TELEGRAM_ALLOWED_IDS")),
		ListenLogLevel:      level,
		Mode:                mode,
		LocalHost:           localHost,
		LocalPort:           localPort,
		DBPath:              os.Getenv("TASKPILOT_DB_PATH"),
		CacheDir:            os.Getenv("TASKPILOT_CACHE_DIR"),
		TimezoneOffsetHours: tzOffset,
		ProjectCacheTTL:     time.Duration(projectTTLHours) * time.Hour,
		HTTPTimeout:         time.Duration(httpTimeoutSecs) * time.Second,
	}
}

func parseIDList(v string) []int64 {
	var out []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var n int64
		ok := true
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				ok = false
				break
			}
			n = n*10 + int64(part[i]-'0')
		}
		if ok && n > 0 {
			out = append(out, n)
		}
	}
	return out
}

func atoiOrDefault(v string, fallback int) int {
	n := 0
	if v == "" {
		return fallback
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return fallback
		}
		n = n*10 + int(v[i]-'0')
	}
	return n
}
