// Package config centralizes how LineReport reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dharsanguruparan/LineReport/internal/model"
)

// Backend names accepted by LINEREPORT_RECORD_BACKEND and LINEREPORT_PHOTO_BACKEND.
const (
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
	BackendDrive    = "drive"
	BackendS3       = "s3"
	BackendMemory   = "memory"
)

// Config represents runtime configuration for the service.
type Config struct {
	Address  string
	LogMode  string
	Location *time.Location

	RecordBackend string
	PhotoBackend  string

	// CredentialsJSON is the raw service-account blob. It is parsed lazily by
	// the credentials package so a bad blob surfaces on first use.
	CredentialsJSON string
	SpreadsheetID   string
	SheetRange      string
	DriveFolderID   string

	DatabaseURL string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool
	S3PublicURL string

	MaxPhotoBytes  int64
	AllowedTypes   []string
	HistoryLimit   int
	Machines       []string
	FormSecret     []byte
	FormTokenTTL   time.Duration
	CleanupOrphans bool
}

const (
	defaultAddress       = ":8080"
	defaultLogMode       = "dev"
	defaultSheetRange    = "A:G"
	defaultMaxPhotoBytes = 200 << 20 // 200 MiB
	defaultAllowedTypes  = "image/jpeg,image/png"
	defaultHistoryLimit  = 200
	defaultFormTTL       = 2 * time.Hour
	defaultS3Region      = "us-east-1"
)

// Load reads configuration from the environment, after merging a .env file
// from the working directory when one exists. Variables already present in the
// environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &Error{Key: ".env", Err: err}
	}
	cfg := &Config{
		Address:         readEnv("LINEREPORT_ADDRESS", defaultAddress),
		LogMode:         readEnv("LINEREPORT_ENV", defaultLogMode),
		RecordBackend:   strings.ToLower(readEnv("LINEREPORT_RECORD_BACKEND", BackendSheets)),
		PhotoBackend:    strings.ToLower(readEnv("LINEREPORT_PHOTO_BACKEND", BackendDrive)),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		SpreadsheetID:   strings.TrimSpace(os.Getenv("SHEET_ID")),
		SheetRange:      readEnv("LINEREPORT_SHEET_RANGE", defaultSheetRange),
		DriveFolderID:   strings.TrimSpace(os.Getenv("FOLDER_ID_DRIVE")),
		DatabaseURL:     readEnv("LINEREPORT_DATABASE_URL", ""),
		S3Endpoint:      readEnv("LINEREPORT_S3_ENDPOINT", ""),
		S3AccessKey:     readEnv("LINEREPORT_S3_ACCESS_KEY", ""),
		S3SecretKey:     readEnv("LINEREPORT_S3_SECRET_KEY", ""),
		S3Bucket:        readEnv("LINEREPORT_S3_BUCKET", ""),
		S3Region:        readEnv("LINEREPORT_S3_REGION", defaultS3Region),
		S3UseSSL:        parseBool("LINEREPORT_S3_USE_SSL", true),
		S3PublicURL:     strings.TrimRight(readEnv("LINEREPORT_S3_PUBLIC_URL", ""), "/"),
		MaxPhotoBytes:   parseInt64("LINEREPORT_MAX_PHOTO_BYTES", defaultMaxPhotoBytes),
		AllowedTypes:    parseList("LINEREPORT_ALLOWED_TYPES", defaultAllowedTypes),
		HistoryLimit:    parseInt("LINEREPORT_HISTORY_LIMIT", defaultHistoryLimit),
		FormSecret:      parseSecret("LINEREPORT_FORM_SECRET"),
		FormTokenTTL:    parseDuration("LINEREPORT_FORM_TTL", defaultFormTTL),
		CleanupOrphans:  parseBool("LINEREPORT_CLEANUP_ORPHANS", true),
		Machines:        model.DefaultMachines(),
	}
	loc, err := time.LoadLocation(readEnv("LINEREPORT_TIMEZONE", "Local"))
	if err != nil {
		return nil, &Error{Key: "LINEREPORT_TIMEZONE", Err: err}
	}
	cfg.Location = loc
	if path := readEnv("LINEREPORT_MACHINES_FILE", ""); path != "" {
		machines, err := LoadMachines(path)
		if err != nil {
			return nil, err
		}
		cfg.Machines = machines
	}
	if cfg.FormSecret == nil {
		cfg.FormSecret = randomSecret()
	}
	if cfg.MaxPhotoBytes <= 0 {
		cfg.MaxPhotoBytes = defaultMaxPhotoBytes
	}
	if cfg.FormTokenTTL <= 0 {
		cfg.FormTokenTTL = defaultFormTTL
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	return cfg, nil
}

// Validate reports the first identifier the selected backends need but the
// environment does not provide.
func (c *Config) Validate() error {
	switch c.RecordBackend {
	case BackendSheets:
		if c.SpreadsheetID == "" {
			return missing("SHEET_ID")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return missing("LINEREPORT_DATABASE_URL")
		}
	case BackendMemory:
	default:
		return &Error{Key: "LINEREPORT_RECORD_BACKEND", Err: fmt.Errorf("unknown backend %q", c.RecordBackend)}
	}
	switch c.PhotoBackend {
	case BackendDrive:
		if c.DriveFolderID == "" {
			return missing("FOLDER_ID_DRIVE")
		}
	case BackendS3:
		for key, val := range map[string]string{
			"LINEREPORT_S3_ENDPOINT":   c.S3Endpoint,
			"LINEREPORT_S3_ACCESS_KEY": c.S3AccessKey,
			"LINEREPORT_S3_SECRET_KEY": c.S3SecretKey,
			"LINEREPORT_S3_BUCKET":     c.S3Bucket,
		} {
			if val == "" {
				return missing(key)
			}
		}
	case BackendMemory:
	default:
		return &Error{Key: "LINEREPORT_PHOTO_BACKEND", Err: fmt.Errorf("unknown backend %q", c.PhotoBackend)}
	}
	if len(c.Machines) == 0 {
		return missing("LINEREPORT_MACHINES_FILE")
	}
	return nil
}

// NeedsGoogle reports whether any selected backend talks to Google APIs.
func (c *Config) NeedsGoogle() bool {
	return c.RecordBackend == BackendSheets || c.PhotoBackend == BackendDrive
}

type machineCatalog struct {
	Machines []string `yaml:"machines"`
}

// LoadMachines reads a YAML file of the form `machines: [MAQ-2, ...]`.
func LoadMachines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Key: "LINEREPORT_MACHINES_FILE", Err: err}
	}
	var catalog machineCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, &Error{Key: "LINEREPORT_MACHINES_FILE", Err: fmt.Errorf("parse %s: %w", path, err)}
	}
	out := make([]string, 0, len(catalog.Machines))
	for _, m := range catalog.Machines {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, &Error{Key: "LINEREPORT_MACHINES_FILE", Err: fmt.Errorf("%s lists no machines", path)}
	}
	return out, nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func parseList(key, def string) []string {
	val := readEnv(key, def)
	out := strings.Split(val, ",")
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

// randomSecret means form tokens do not survive a restart unless
// LINEREPORT_FORM_SECRET is set.
func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte(strconv.FormatInt(time.Now().UnixNano(), 16))
	}
	return buf
}
