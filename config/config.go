package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"rental-digest/models"
	"rental-digest/scraper"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Notification sinks.
const (
	SinkSES = "ses"
	SinkLog = "log"
)

// Config holds all application configuration loaded from environment variables
// and, optionally, a YAML criteria file.
type Config struct {
	StoreBackend string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	DynamoDBTable string
	AWSRegion     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NotifySink      string
	EmailSender     string
	EmailRecipients []string

	ReportTitle    string
	ReportWindow   time.Duration
	ReportLocale   string
	ReportTimezone string
	CurrencySymbol string

	Providers         []string
	MaxRetries        int
	ProviderDelay     time.Duration
	RequestTimeout    time.Duration
	IngestConcurrency int
	RawCSVPath        string
	ChromeBin         string
	UserAgent         string
	StateCode         string
	StateName         string

	IngestSchedule string
	ReportSchedule string
	HTTPAddr       string

	LogLevel       string
	LogDevelopment bool

	Criteria models.FilterCriteria
}

// DefaultCriteria is the search used when neither a criteria file nor env
// overrides are given.
func DefaultCriteria() models.FilterCriteria {
	return models.FilterCriteria{
		City:         "curitiba",
		PropertyType: "apartamento",
		Neighborhoods: []string{
			"ahu", "alto da gloria", "alto da rua xv", "agua verde", "batel",
			"bigorrilho", "bom retiro", "cabral", "centro", "champagnat",
			"hugo lange", "jardim social", "juveve", "merces", "mossungue", "portao",
		},
		MaxPrice:         2500,
		MinArea:          60,
		MinRooms:         2,
		CondoFeeIncluded: true,
	}
}

// Load reads the .env file, then the criteria file named by CRITERIA_FILE,
// then the environment. It does not validate; call Validate before use.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	criteria := DefaultCriteria()
	if path := getEnv("CRITERIA_FILE", ""); path != "" {
		fromFile, err := LoadCriteria(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrFatalConfiguration, err)
		}
		criteria = fromFile
	}
	applyCriteriaOverrides(&criteria)

	return &Config{
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "rental"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		DynamoDBTable: getEnv("DYNAMODB_TABLE", ""),
		AWSRegion:     getEnv("AWS_REGION", "us-east-2"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		NotifySink:      strings.ToLower(getEnv("NOTIFY_SINK", SinkLog)),
		EmailSender:     getEnv("EMAIL_SENDER", ""),
		EmailRecipients: getEnvList("EMAIL_RECIPIENTS", nil),

		ReportTitle:    getEnv("REPORT_TITLE", "Imóveis "+displayCity(criteria.City)),
		ReportWindow:   getEnvDuration("REPORT_WINDOW", 8*time.Hour),
		ReportLocale:   getEnv("REPORT_LOCALE", "pt-BR"),
		ReportTimezone: getEnv("REPORT_TIMEZONE", "America/Sao_Paulo"),
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "R$"),

		Providers:         getEnvList("PROVIDERS", []string{"apolar", "galvao", "zapimoveis"}),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		ProviderDelay:     getEnvDuration("PROVIDER_DELAY", 3*time.Second),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
		IngestConcurrency: getEnvInt("INGEST_CONCURRENCY", 4),
		RawCSVPath:        getEnv("RAW_CSV_PATH", ""),
		ChromeBin:         getEnv("CHROME_BIN", ""),
		UserAgent: getEnv("USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		StateCode: getEnv("STATE_CODE", "pr"),
		StateName: getEnv("STATE_NAME", "Paraná"),

		IngestSchedule: getEnv("INGEST_SCHEDULE", "0 */2 * * *"),
		ReportSchedule: getEnv("REPORT_SCHEDULE", "30 7,15,23 * * *"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),

		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogDevelopment: getEnvBool("LOG_DEVELOPMENT", false),

		Criteria: criteria,
	}, nil
}

// LoadCriteria reads a YAML criteria file. Keys left out of the file keep
// their zero value, i.e. unbounded.
func LoadCriteria(path string) (models.FilterCriteria, error) {
	var c models.FilterCriteria
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read criteria file: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse criteria file %s: %w", path, err)
	}
	return c, nil
}

func applyCriteriaOverrides(c *models.FilterCriteria) {
	c.City = getEnv("CITY", c.City)
	c.PropertyType = getEnv("PROPERTY_TYPE", c.PropertyType)
	c.Neighborhoods = getEnvList("NEIGHBORHOODS", c.Neighborhoods)
	c.MaxPrice = getEnvFloat("MAX_PRICE", c.MaxPrice)
	c.MinArea = getEnvFloat("MIN_AREA", c.MinArea)
	c.MinRooms = getEnvInt("MIN_ROOMS", c.MinRooms)
	c.CondoFeeIncluded = getEnvBool("CONDO_FEE_INCLUDED", c.CondoFeeIncluded)
}

// Validate reports every missing or inconsistent setting at once. The
// returned error wraps models.ErrFatalConfiguration.
func (c *Config) Validate() error {
	var problems []error

	switch c.StoreBackend {
	case BackendPostgres:
		if c.PostgresHost == "" || c.PostgresDB == "" {
			problems = append(problems, errors.New("postgres backend needs POSTGRES_HOST and POSTGRES_DB"))
		}
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			problems = append(problems, errors.New("dynamodb backend needs DYNAMODB_TABLE"))
		}
		if c.AWSRegion == "" {
			problems = append(problems, errors.New("dynamodb backend needs AWS_REGION"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			problems = append(problems, errors.New("redis backend needs REDIS_ADDR"))
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.NotifySink {
	case SinkSES:
		if c.EmailSender == "" {
			problems = append(problems, errors.New("ses sink needs EMAIL_SENDER"))
		}
		if len(c.EmailRecipients) == 0 {
			problems = append(problems, errors.New("ses sink needs EMAIL_RECIPIENTS"))
		}
	case SinkLog:
	default:
		problems = append(problems, fmt.Errorf("unknown NOTIFY_SINK %q", c.NotifySink))
	}

	if c.ReportWindow <= 0 {
		problems = append(problems, errors.New("REPORT_WINDOW must be positive"))
	}
	if c.Criteria.City == "" {
		problems = append(problems, errors.New("search criteria need a city"))
	}
	if len(c.Criteria.Neighborhoods) == 0 {
		problems = append(problems, errors.New("search criteria need at least one neighborhood"))
	}
	if c.Criteria.MaxPrice < 0 || c.Criteria.MinArea < 0 || c.Criteria.MinRooms < 0 {
		problems = append(problems, errors.New("search bounds must not be negative"))
	}
	if len(c.Providers) == 0 {
		problems = append(problems, errors.New("PROVIDERS must name at least one provider"))
	}
	for _, name := range c.Providers {
		if !scraper.Known(name) {
			problems = append(problems, fmt.Errorf("unknown provider %q in PROVIDERS", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", models.ErrFatalConfiguration, errors.Join(problems...))
	}
	return nil
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

func displayCity(city string) string {
	return cases.Title(language.BrazilianPortuguese).String(city)
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
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
