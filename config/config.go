package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	HTTPPort     string
	Domains      []string
	CertCacheDir string

	UploadsDir string
	TempDir    string
	OutputDir  string
	AssetsDir  string

	FFmpegBin  string
	FFprobeBin string
	YtDlpBin   string

	// Every external-process stage is killed after StageTimeout. The
	// extraction fallback chain uses the shorter StrategyTimeout per attempt.
	StageTimeout    time.Duration
	StrategyTimeout time.Duration

	MaxUploadBytes  int64
	RetentionDays   int
	CleanupInterval time.Duration

	// Timing defaults shared by every style variant.
	ImageClipSeconds float64
	VideoClipSeconds float64
	FadeInRatio      float64
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		Domains:      []string{getEnv("DOMAIN", "example.com")},
		CertCacheDir: getEnv("CERT_CACHE_DIR", "certs"),

		UploadsDir: getEnv("UPLOADS_DIR", "uploads"),
		TempDir:    getEnv("TEMP_DIR", "temp"),
		OutputDir:  getEnv("OUTPUT_DIR", "output"),
		AssetsDir:  getEnv("ASSETS_DIR", "assets"),

		FFmpegBin:  getEnv("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin: getEnv("FFPROBE_BIN", "ffprobe"),
		YtDlpBin:   getEnv("YTDLP_BIN", "yt-dlp"),

		StageTimeout:    time.Duration(getEnvAsInt("STAGE_TIMEOUT_SECONDS", 300)) * time.Second,
		StrategyTimeout: time.Duration(getEnvAsInt("STRATEGY_TIMEOUT_SECONDS", 60)) * time.Second,

		MaxUploadBytes:  int64(getEnvAsInt("MAX_UPLOAD_MB", 50)) * 1024 * 1024,
		RetentionDays:   getEnvAsInt("OUTPUT_RETENTION_DAYS", 2),
		CleanupInterval: time.Duration(getEnvAsInt("CLEANUP_INTERVAL_MINUTES", 60)) * time.Minute,

		ImageClipSeconds: getEnvAsFloat("IMAGE_CLIP_SECONDS", 4),
		VideoClipSeconds: getEnvAsFloat("VIDEO_CLIP_SECONDS", 5),
		FadeInRatio:      getEnvAsFloat("FADE_IN_RATIO", 0.75),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
