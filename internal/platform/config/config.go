package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var errInvalidPattern = errors.New("invalid pattern")

type Config struct {
	AppEnv     string `env:"APP_ENV" envDefault:"local"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	HealthPort int    `env:"HEALTH_PORT" envDefault:"8080" validate:"min=1,max=65535"`

	// Database
	PostgresDSN      string `env:"POSTGRES_DSN,required" validate:"required"`
	PostgresRootCert string `env:"POSTGRES_SSL_ROOT_CERT"`
	DBMaxConnections int32  `env:"DB_MAX_CONNECTIONS" envDefault:"4" validate:"min=1"`

	// Telegram MTProto
	TGAPIID          int     `env:"TG_API_ID,required" validate:"required"`
	TGAPIHash        string  `env:"TG_API_HASH,required" validate:"required"`
	TGPhone          string  `env:"TG_PHONE"`
	TG2FAPassword    string  `env:"TG_2FA_PASSWORD"`
	TGSessionPath    string  `env:"TG_SESSION_PATH" envDefault:"./tg.session"`
	TGRateLimitRPS   float64 `env:"TG_RATE_LIMIT_RPS" envDefault:"1" validate:"gte=0"`
	ReaderFetchLimit int     `env:"READER_FETCH_LIMIT" envDefault:"100" validate:"min=1,max=100"`

	// Ingestion
	HomeChannels      []string `env:"HOME_CHANNELS,required" envSeparator:"," validate:"min=1,dive,required"`
	DownloadDir       string   `env:"DOWNLOAD_DIR" envDefault:"../Media/Downloads/" validate:"required"`
	PhotoDir          string   `env:"PHOTO_DIR" envDefault:"../Media/Photo/" validate:"required"`
	FileSizeLimit     int64    `env:"FILE_SIZE_LIMIT" envDefault:"15728640" validate:"gt=0"`
	AllowedExtensions []string `env:"ALLOWED_EXTENSIONS" envDefault:"rar,pdf,djvu,zip,7z" envSeparator:"," validate:"min=1,dive,required"`
	PermalinkBase     string   `env:"PERMALINK_BASE" envDefault:"https://t.me" validate:"url"`
	LinkPattern       string   `env:"LINK_PATTERN" envDefault:"https://t.me/\\S+/\\d+" validate:"required"`
	TitleMaxLength    int      `env:"TITLE_MAX_LENGTH" envDefault:"255" validate:"min=1,max=255"`
	YearMin           int      `env:"YEAR_MIN" envDefault:"1800" validate:"ltefield=YearMax"`
	YearMax           int      `env:"YEAR_MAX" envDefault:"2023"`
	ThumbnailSize     int      `env:"THUMBNAIL_SIZE" envDefault:"300" validate:"min=1"`
	ResizeHeight      int      `env:"RESIZE_HEIGHT" envDefault:"400" validate:"min=1"`

	// Photo sync over SFTP
	SFTPHost           string `env:"SFTP_HOST"`
	SFTPPort           int    `env:"SFTP_PORT" envDefault:"22" validate:"min=1,max=65535"`
	SFTPUser           string `env:"SFTP_USER"`
	SFTPPassword       string `env:"SFTP_PASSWORD"`
	SFTPHostKey        string `env:"SFTP_HOST_KEY"`
	SFTPRemotePhotoDir string `env:"SFTP_REMOTE_PHOTO_DIR" envDefault:"./Media/Files/Photo"`
	PhotoSyncPattern   string `env:"PHOTO_SYNC_PATTERN" envDefault:"\\d+_\\d+_\\d+_resize.jpg|\\d+_\\d+_\\d+_thumbnail.jpg"`

	// Archive on Yandex Disk
	YaDiskToken     string `env:"YADISK_TOKEN"`
	YaDiskAPIURL    string `env:"YADISK_API_URL" envDefault:"https://cloud-api.yandex.net/v1/disk" validate:"url"`
	YaDiskRemoteDir string `env:"YADISK_REMOTE_DIR" envDefault:"/Media/Downloads/"`

	TransferTimeout time.Duration `env:"TRANSFER_TIMEOUT" envDefault:"30m" validate:"gt=0"`

	// Run report
	NotifyBotToken string  `env:"NOTIFY_BOT_TOKEN"`
	NotifyChatIDs  []int64 `env:"NOTIFY_CHAT_IDS" envSeparator:","`

	ScheduleCron string `env:"SCHEDULE_CRON" envDefault:"0 */6 * * *" validate:"required"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	normalize(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints and that both patterns compile.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	for name, pattern := range map[string]string{
		"LINK_PATTERN":       c.LinkPattern,
		"PHOTO_SYNC_PATTERN": c.PhotoSyncPattern,
	} {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%w %s: %w", errInvalidPattern, name, err)
		}
	}

	return nil
}

// SFTPEnabled reports whether photo sync has enough settings to connect.
func (c *Config) SFTPEnabled() bool {
	return c.SFTPHost != "" && c.SFTPUser != ""
}

// ArchiveEnabled reports whether the archive sweep has a token.
func (c *Config) ArchiveEnabled() bool {
	return c.YaDiskToken != ""
}

// NotifyEnabled reports whether run reports can be delivered.
func (c *Config) NotifyEnabled() bool {
	return c.NotifyBotToken != "" && len(c.NotifyChatIDs) > 0
}

func normalize(cfg *Config) {
	cfg.HomeChannels = trimAll(cfg.HomeChannels, "@")
	cfg.AllowedExtensions = trimAll(cfg.AllowedExtensions, ".")
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
}

// trimAll trims spaces and the given prefix from every item and drops
// empty ones.
func trimAll(items []string, prefix string) []string {
	out := make([]string, 0, len(items))

	for _, item := range items {
		item = strings.TrimPrefix(strings.TrimSpace(item), prefix)
		if item != "" {
			out = append(out, item)
		}
	}

	return out
}
