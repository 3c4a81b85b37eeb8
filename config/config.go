package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr     string
	BaseURL  string
	DBUrl    string
	RedisURL string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
	PushTTL         time.Duration
	PushTimeout     time.Duration

	TrustProxy      bool
	CORSOrigins     []string
	GlobalRateLimit int

	Debug        bool
	LogJSON      bool
	GenVAPIDKeys bool
}

// ParseFlags reads .env (if present) and the command line.
// Environment variables provide the defaults, flags override them.
func ParseFlags() (cfg Config, err error) {
	_ = godotenv.Load()
	return Parse(flag.CommandLine, os.Args[1:])
}

func Parse(fs *flag.FlagSet, args []string) (cfg Config, err error) {
	var host string
	fs.StringVar(&host, "host", env("MELLOWQ_HOST", "0.0.0.0"), "listen host name")
	var port uint
	fs.UintVar(&port, "port", envUint("MELLOWQ_PORT", 8080), "listen port number")
	fs.StringVar(&cfg.BaseURL, "base-url", env("MELLOWQ_BASE_URL", ""), "public base URL used in survey, admin and follow-up links (default derived from listen address)")
	fs.StringVar(&cfg.DBUrl, "db-url", env("MELLOWQ_DB_URL", "mellowq.sqlite"), "path to SQLite3 DB file, or mongodb:// URL")
	fs.StringVar(&cfg.RedisURL, "redis-url", env("MELLOWQ_REDIS_URL", ""), "redis:// URL for shared rate limit counters (default in-memory)")

	fs.StringVar(&cfg.VAPIDPublicKey, "vapid-public-key", env("MELLOWQ_VAPID_PUBLIC_KEY", ""), "VAPID public key for web push")
	fs.StringVar(&cfg.VAPIDPrivateKey, "vapid-private-key", env("MELLOWQ_VAPID_PRIVATE_KEY", ""), "VAPID private key for web push")
	fs.StringVar(&cfg.VAPIDSubscriber, "vapid-subscriber", env("MELLOWQ_VAPID_SUBSCRIBER", "noreply@mellowq.com"), "VAPID subscriber (mailto address or https URL)")
	var ttl, timeout uint
	fs.UintVar(&ttl, "push-ttl", envUint("MELLOWQ_PUSH_TTL", 60), "web push message TTL in seconds")
	fs.UintVar(&timeout, "push-timeout", envUint("MELLOWQ_PUSH_TIMEOUT", 10), "web push provider timeout in seconds")

	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", envBool("MELLOWQ_TRUST_PROXY", false), "take the client address from X-Forwarded-For / X-Real-IP")
	var origins string
	fs.StringVar(&origins, "cors-origins", env("MELLOWQ_CORS_ORIGINS", ""), "comma separated list of allowed CORS origins")
	var globalLimit uint
	fs.UintVar(&globalLimit, "global-rate-limit", envUint("MELLOWQ_GLOBAL_RATE_LIMIT", 120), "requests per minute per address across the whole API (0 disables)")

	fs.BoolVar(&cfg.Debug, "debug", envBool("MELLOWQ_DEBUG", false), "log at DEBUG level")
	fs.BoolVar(&cfg.LogJSON, "log-json", envBool("MELLOWQ_LOG_JSON", false), "log as JSON")
	fs.BoolVar(&cfg.GenVAPIDKeys, "gen-vapid-keys", false, "print a new VAPID key pair and exit")

	err = fs.Parse(args)
	if err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.PushTTL = time.Duration(ttl) * time.Second
	cfg.PushTimeout = time.Duration(timeout) * time.Second
	cfg.GlobalRateLimit = int(globalLimit)
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = cfg.Url()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		err = errors.New("-vapid-public-key and -vapid-private-key must be given together")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

// PushEnabled reports whether VAPID keys are configured.
func (cfg Config) PushEnabled() bool {
	return cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != ""
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envUint(key string, def uint) uint {
	v, err := strconv.ParseUint(os.Getenv(key), 10, 32)
	if err != nil {
		return def
	}
	return uint(v)
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
