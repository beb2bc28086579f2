package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

// Test environment variable keys.
const (
	testEnvPostgresDSN  = "POSTGRES_DSN"
	testEnvTGAPIID      = "TG_API_ID"
	testEnvTGAPIHash    = "TG_API_HASH"
	testEnvHomeChannels = "HOME_CHANNELS"
)

// Test values.
const (
	testPostgresDSN        = "postgres://localhost/test"
	testTGAPIID            = "12345"
	testTGAPIHash          = "abcdef123456"
	testHomeChannels       = "@books, papers"
	testErrLoad            = "Load() error = %v"
	testDefaultEnv         = "local"
	testDefaultSessionPath = "./tg.session"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()

	t.Setenv(testEnvPostgresDSN, testPostgresDSN)
	t.Setenv(testEnvTGAPIID, testTGAPIID)
	t.Setenv(testEnvTGAPIHash, testTGAPIHash)
	t.Setenv(testEnvHomeChannels, testHomeChannels)
}

func TestLoad_MissingRequired(t *testing.T) {
	// Clear all required vars
	os.Unsetenv(testEnvPostgresDSN)
	os.Unsetenv(testEnvTGAPIID)
	os.Unsetenv(testEnvTGAPIHash)
	os.Unsetenv(testEnvHomeChannels)

	_, err := Load()
	if err == nil {
		t.Error("expected error for missing required env vars")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.PostgresDSN != testPostgresDSN {
		t.Errorf("PostgresDSN = %q, want %q", cfg.PostgresDSN, testPostgresDSN)
	}

	if cfg.TGAPIID != 12345 {
		t.Errorf("TGAPIID = %d, want %d", cfg.TGAPIID, 12345)
	}

	if want := []string{"books", "papers"}; !reflect.DeepEqual(cfg.HomeChannels, want) {
		t.Errorf("HomeChannels = %v, want %v", cfg.HomeChannels, want)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	// Explicitly unset variables that might be in .env to test actual defaults
	for _, key := range []string{
		"APP_ENV", "HEALTH_PORT", "TG_SESSION_PATH", "FILE_SIZE_LIMIT", "ALLOWED_EXTENSIONS",
		"YEAR_MIN", "YEAR_MAX", "TRANSFER_TIMEOUT", "READER_FETCH_LIMIT", "YADISK_TOKEN", "SFTP_HOST",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.AppEnv != testDefaultEnv {
		t.Errorf("AppEnv default = %q, want %q", cfg.AppEnv, testDefaultEnv)
	}

	if cfg.HealthPort != 8080 {
		t.Errorf("HealthPort default = %d, want %d", cfg.HealthPort, 8080)
	}

	if cfg.TGSessionPath != testDefaultSessionPath {
		t.Errorf("TGSessionPath default = %q, want %q", cfg.TGSessionPath, testDefaultSessionPath)
	}

	if cfg.FileSizeLimit != 15728640 {
		t.Errorf("FileSizeLimit default = %d, want %d", cfg.FileSizeLimit, 15728640)
	}

	if want := []string{"rar", "pdf", "djvu", "zip", "7z"}; !reflect.DeepEqual(cfg.AllowedExtensions, want) {
		t.Errorf("AllowedExtensions default = %v, want %v", cfg.AllowedExtensions, want)
	}

	if cfg.YearMin != 1800 || cfg.YearMax != 2023 {
		t.Errorf("year range default = %d..%d, want 1800..2023", cfg.YearMin, cfg.YearMax)
	}

	if cfg.TransferTimeout != 30*time.Minute {
		t.Errorf("TransferTimeout default = %s, want 30m", cfg.TransferTimeout)
	}

	if cfg.ReaderFetchLimit != 100 {
		t.Errorf("ReaderFetchLimit default = %d, want %d", cfg.ReaderFetchLimit, 100)
	}

	if cfg.LinkPattern != `https://t.me/\S+/\d+` {
		t.Errorf("LinkPattern default = %q", cfg.LinkPattern)
	}

	if cfg.ArchiveEnabled() || cfg.SFTPEnabled() || cfg.NotifyEnabled() {
		t.Error("sinks should be disabled without credentials")
	}
}

func TestLoad_NotifyChatIDs(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("NOTIFY_BOT_TOKEN", "123456:ABC-DEF")
	t.Setenv("NOTIFY_CHAT_IDS", "111,-1001234567890")

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if want := []int64{111, -1001234567890}; !reflect.DeepEqual(cfg.NotifyChatIDs, want) {
		t.Errorf("NotifyChatIDs = %v, want %v", cfg.NotifyChatIDs, want)
	}

	if !cfg.NotifyEnabled() {
		t.Error("NotifyEnabled() = false, want true")
	}
}

func TestLoad_InvalidNumeric(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("FILE_SIZE_LIMIT", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Error("expected error for invalid FILE_SIZE_LIMIT")
	}
}

func TestLoad_InvalidYearRange(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("YEAR_MIN", "2024")
	t.Setenv("YEAR_MAX", "2000")

	_, err := Load()
	if err == nil {
		t.Error("expected error for YEAR_MIN above YEAR_MAX")
	}
}

func TestLoad_InvalidPattern(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("PHOTO_SYNC_PATTERN", "([")

	_, err := Load()
	if err == nil {
		t.Error("expected error for invalid PHOTO_SYNC_PATTERN")
	}
}

func TestLoad_EmptyHomeChannels(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv(testEnvHomeChannels, " , ")

	_, err := Load()
	if err == nil {
		t.Error("expected error for empty HOME_CHANNELS")
	}
}

func TestLoad_TitleMaxLengthFitsColumn(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("TITLE_MAX_LENGTH", "256")

	_, err := Load()
	if err == nil {
		t.Error("expected error for TITLE_MAX_LENGTH above the title column width")
	}

	t.Setenv("TITLE_MAX_LENGTH", "255")

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.TitleMaxLength != 255 {
		t.Errorf("TitleMaxLength = %d, want %d", cfg.TitleMaxLength, 255)
	}
}
