package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Ingestion IngestionConfig
	Summary   SummaryConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes how bearer tokens minted by the auth provider are verified.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// IngestionConfig holds the institution-specific knobs of the upload pipeline.
type IngestionConfig struct {
	MaxUploadBytes          int64
	StudentSheet            string
	EnrollmentSheet         string
	StudentRequired         []string
	EnrollmentRequired      []string
	SATMathMin              int
	SATMathMax              int
	SATTotalMin             int
	SATTotalMax             int
	ACTMin                  int
	ACTMax                  int
	MathPlacementMax        int
	RequireEnrollmentsSheet bool
}

// SummaryConfig governs the dashboard statistics endpoint.
type SummaryConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUpload := v.GetInt64("INGEST_MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 20 * 1024 * 1024
	}
	cfg.Ingestion = IngestionConfig{
		MaxUploadBytes:          maxUpload,
		StudentSheet:            v.GetString("INGEST_STUDENT_SHEET"),
		EnrollmentSheet:         v.GetString("INGEST_ENROLLMENT_SHEET"),
		StudentRequired:         splitAndTrim(v.GetString("INGEST_STUDENT_REQUIRED")),
		EnrollmentRequired:      splitAndTrim(v.GetString("INGEST_ENROLLMENT_REQUIRED")),
		SATMathMin:              v.GetInt("SAT_MATH_MIN"),
		SATMathMax:              v.GetInt("SAT_MATH_MAX"),
		SATTotalMin:             v.GetInt("SAT_TOTAL_MIN"),
		SATTotalMax:             v.GetInt("SAT_TOTAL_MAX"),
		ACTMin:                  v.GetInt("ACT_SCORE_MIN"),
		ACTMax:                  v.GetInt("ACT_SCORE_MAX"),
		MathPlacementMax:        v.GetInt("MATH_PLACEMENT_MAX"),
		RequireEnrollmentsSheet: v.GetBool("INGEST_REQUIRE_ENROLLMENTS_SHEET"),
	}

	cfg.Summary = SummaryConfig{
		Enabled:  v.GetBool("ENABLE_SUMMARY"),
		CacheTTL: parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "stem_dashboard")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "stem-dashboard")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("INGEST_MAX_UPLOAD_BYTES", 20*1024*1024)
	v.SetDefault("INGEST_STUDENT_SHEET", "students")
	v.SetDefault("INGEST_ENROLLMENT_SHEET", "enrollments")
	v.SetDefault("INGEST_STUDENT_REQUIRED", "Unique_ID,Admit_Year,Admit_Term,Major_1,Major_1_Desc,Class,Race,Sex")
	v.SetDefault("INGEST_ENROLLMENT_REQUIRED", "Unique_ID,Course_Term,Course_Number,Course_Grade,Course_Title")
	v.SetDefault("INGEST_REQUIRE_ENROLLMENTS_SHEET", true)
	v.SetDefault("SAT_MATH_MIN", 200)
	v.SetDefault("SAT_MATH_MAX", 800)
	v.SetDefault("SAT_TOTAL_MIN", 400)
	v.SetDefault("SAT_TOTAL_MAX", 1600)
	v.SetDefault("ACT_SCORE_MIN", 1)
	v.SetDefault("ACT_SCORE_MAX", 36)
	v.SetDefault("MATH_PLACEMENT_MAX", 100)

	v.SetDefault("ENABLE_SUMMARY", true)
	v.SetDefault("SUMMARY_CACHE_TTL", "5m")
}

// isMissingFile reports whether the explicit .env file is simply absent.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
