package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"yelp-pins/models"
)

// Pipeline modes.
const (
	ModeAll   = "all"
	ModeFetch = "fetch"
	ModeBuild = "build"
)

// Search parameter styles accepted by the Yelp v2 search endpoint.
const (
	SearchModeSearch = "search" // categories, ll, radius
	SearchModeFilter = "filter" // category_filter, ll, radius_filter
)

const (
	AuthOAuth1 = "oauth1"
	AuthBearer = "bearer"
)

const (
	RawFormatRepr = "repr"
	RawFormatJSON = "json"
)

const (
	ExtractorDelimiter  = "delimiter"
	ExtractorStructured = "structured"
)

const (
	OutputJSON   = "json"
	OutputRecord = "record"
)

const (
	StoreNone     = "none"
	StorePostgres = "postgres"
	StoreElastic  = "elastic"
)

// Error policies applied to fetch failures and malformed entries.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// DefaultLocations are the Victoria, BC search centres the crawler was
// first run against.
const DefaultLocations = "48.44,-123.34;48.40,-123.37;48.42,-123.30;48.44,-123.33;48.47,-123.32"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Mode     string
	LogLevel string

	// Search
	SearchURL      string
	SearchMode     string
	SearchCategory string
	SearchRadius   string
	Locations      []models.SearchLocation

	// Auth
	AuthMode       string
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
	APIKey         string

	// Fetch pacing
	MaxConcurrency   int
	RequestInterval  time.Duration
	MaxRetries       int
	HTTPTimeout      time.Duration
	DedupeBusinesses bool

	// Files
	RawDumpPath       string
	RawFormat         string
	OutputPath        string
	OutputFormat      string
	JSONTrailingComma bool

	// Extraction / emission
	Extractor     string
	ErrorPolicy   string
	PinType       models.PinType
	LinkedAccount string

	// Remote pin store
	PinStore         string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	ElasticURL       string
	ElasticIndex     string

	MetricsAddr string
}

// Load reads the .env file and returns a populated Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Mode:     getEnv("PIPELINE_MODE", ModeAll),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SearchURL:      getEnv("YELP_SEARCH_URL", "http://api.yelp.com/v2/search"),
		SearchMode:     getEnv("SEARCH_MODE", SearchModeSearch),
		SearchCategory: getEnv("SEARCH_CATEGORY", "restaurant"),
		SearchRadius:   getEnv("SEARCH_RADIUS", "1000"),

		AuthMode:       getEnv("AUTH_MODE", AuthOAuth1),
		ConsumerKey:    getEnv("YELP_CONSUMER_KEY", ""),
		ConsumerSecret: getEnv("YELP_CONSUMER_SECRET", ""),
		Token:          getEnv("YELP_TOKEN", ""),
		TokenSecret:    getEnv("YELP_TOKEN_SECRET", ""),
		APIKey:         getEnv("YELP_API_KEY", ""),

		MaxConcurrency:   getEnvInt("MAX_CONCURRENCY", 1),
		RequestInterval:  time.Duration(getEnvInt("REQUEST_INTERVAL_MS", 1000)) * time.Millisecond,
		MaxRetries:       getEnvInt("MAX_RETRIES", 1),
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_MS", 30000)) * time.Millisecond,
		DedupeBusinesses: getEnvBool("DEDUPE_BUSINESSES", false),

		RawDumpPath:       getEnv("RAW_DUMP_PATH", "data.txt"),
		RawFormat:         getEnv("RAW_FORMAT", RawFormatRepr),
		OutputPath:        getEnv("OUTPUT_PATH", "json_data_restaurants.txt"),
		OutputFormat:      getEnv("OUTPUT_FORMAT", OutputJSON),
		JSONTrailingComma: getEnvBool("JSON_TRAILING_COMMA", true),

		Extractor:     getEnv("EXTRACTOR", ExtractorDelimiter),
		ErrorPolicy:   getEnv("ERROR_POLICY", PolicyAbort),
		PinType:       models.PinType(getEnvInt("PIN_TYPE", int(models.PinTypeRestaurant))),
		LinkedAccount: getEnv("LINKED_ACCOUNT", "YELP"),

		PinStore:         getEnv("PIN_STORE", StoreNone),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "pins"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "pins"),
		PostgresDB:       getEnv("POSTGRES_DB", "pins"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		ElasticURL:       getEnv("ELASTIC_URL", "http://localhost:9200"),
		ElasticIndex:     getEnv("ELASTIC_INDEX", "pins"),

		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}

	locs, err := ParseLocations(getEnv("LOCATIONS", DefaultLocations))
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects enum values the pipeline does not know how to run.
func (c *Config) Validate() error {
	checks := []struct {
		key   string
		value string
		allow []string
	}{
		{"PIPELINE_MODE", c.Mode, []string{ModeAll, ModeFetch, ModeBuild}},
		{"SEARCH_MODE", c.SearchMode, []string{SearchModeSearch, SearchModeFilter}},
		{"AUTH_MODE", c.AuthMode, []string{AuthOAuth1, AuthBearer}},
		{"RAW_FORMAT", c.RawFormat, []string{RawFormatRepr, RawFormatJSON}},
		{"EXTRACTOR", c.Extractor, []string{ExtractorDelimiter, ExtractorStructured}},
		{"OUTPUT_FORMAT", c.OutputFormat, []string{OutputJSON, OutputRecord}},
		{"PIN_STORE", c.PinStore, []string{StoreNone, StorePostgres, StoreElastic}},
		{"ERROR_POLICY", c.ErrorPolicy, []string{PolicyAbort, PolicySkip}},
	}
	for _, ch := range checks {
		if !contains(ch.allow, ch.value) {
			return fmt.Errorf("config: %s=%q, want one of %s", ch.key, ch.value, strings.Join(ch.allow, "|"))
		}
	}
	if c.Mode == ModeAll && c.RawFormat == RawFormatJSON && c.Extractor == ExtractorDelimiter {
		return fmt.Errorf("config: EXTRACTOR=delimiter only reads RAW_FORMAT=repr dumps")
	}
	if !c.PinType.Valid() {
		return fmt.Errorf("config: PIN_TYPE=%d, want 0 (restaurant), 1 (sight) or 2 (hiking)", c.PinType)
	}
	return nil
}

// SkipErrors reports whether failures should be logged and skipped.
func (c *Config) SkipErrors() bool {
	return c.ErrorPolicy == PolicySkip
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// ParseLocations parses "lat,lon;lat,lon;..." into search locations.
func ParseLocations(s string) ([]models.SearchLocation, error) {
	var out []models.SearchLocation
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("config: location %q: want lat,lon", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("config: location %q: latitude: %w", pair, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("config: location %q: longitude: %w", pair, err)
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("config: location %q out of range", pair)
		}
		out = append(out, models.SearchLocation{Latitude: lat, Longitude: lon})
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
		log.Printf("[config] Invalid int for %s=%q, using default %d", key, val, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
		log.Printf("[config] Invalid bool for %s=%q, using default %v", key, val, fallback)
	}
	return fallback
}
