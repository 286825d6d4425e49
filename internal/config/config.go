package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"hyperliquid-watch/internal/logging"
	"hyperliquid-watch/internal/trade"
)

const addressPlaceholder = "{address}"

// Config materialises application configuration.
type Config struct {
	App       AppConfig                     `mapstructure:"app"`
	Logging   logging.Config                `mapstructure:"logging"`
	Wallet    WalletConfig                  `mapstructure:"wallet"`
	Watch     WatchConfig                   `mapstructure:"watch"`
	Layouts   map[string]trade.ColumnLayout `mapstructure:"layouts"`
	Time      TimeConfig                    `mapstructure:"time"`
	Browser   BrowserConfig                 `mapstructure:"browser"`
	Alerting  AlertingConfig                `mapstructure:"alerting"`
	Database  DatabaseConfig                `mapstructure:"database"`
	Scheduler SchedulerConfig               `mapstructure:"scheduler"`
	Metrics   MetricsConfig                 `mapstructure:"metrics"`
	Export    ExportConfig                  `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// WalletConfig identifies the watched account and its activity page.
type WalletConfig struct {
	Address     string `mapstructure:"address"`
	URLTemplate string `mapstructure:"url_template"`
}

// URL renders the activity page address for the wallet.
func (w WalletConfig) URL() string {
	return strings.ReplaceAll(w.URLTemplate, addressPlaceholder, w.Address)
}

// WatchConfig 描述每次运行的时间窗口与告警范围。
type WatchConfig struct {
	Window           time.Duration `mapstructure:"window"`
	ExpectedInterval time.Duration `mapstructure:"expected_interval"`
	SafetyMargin     time.Duration `mapstructure:"safety_margin"`
	AlertCap         int           `mapstructure:"alert_cap"`
	IncludeOther     bool          `mapstructure:"include_other"`
	Layout           string        `mapstructure:"layout"`
	Banner           string        `mapstructure:"banner"`
}

// TimeConfig describes the age-cell grammar.
type TimeConfig struct {
	AbsoluteLayouts []string                 `mapstructure:"absolute_layouts"`
	Location        string                   `mapstructure:"location"`
	Units           map[string]time.Duration `mapstructure:"units"`
}

// LoadLocation resolves the zone absolute timestamps are read in.
func (t TimeConfig) LoadLocation() (*time.Location, error) {
	if t.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(t.Location)
	if err != nil {
		return nil, fmt.Errorf("load time.location %q: %w", t.Location, err)
	}
	return loc, nil
}

// BrowserConfig selects the renderer and its synchronisation policy.
type BrowserConfig struct {
	Kind           string        `mapstructure:"kind"`
	ExecPath       string        `mapstructure:"exec_path"`
	Headless       bool          `mapstructure:"headless"`
	UserAgent      string        `mapstructure:"user_agent"`
	LoadTimeout    time.Duration `mapstructure:"load_timeout"`
	WindowWidth    int           `mapstructure:"window_width"`
	WindowHeight   int           `mapstructure:"window_height"`
	TableSelector  string        `mapstructure:"table_selector"`
	RowSelector    string        `mapstructure:"row_selector"`
	CellSelector   string        `mapstructure:"cell_selector"`
	HeaderSelector string        `mapstructure:"header_selector"`
	NoDataSelector string        `mapstructure:"no_data_selector"`
	NoDataText     string        `mapstructure:"no_data_text"`
	MinCells       int           `mapstructure:"min_cells"`
	RowsTimeout    time.Duration `mapstructure:"rows_timeout"`
	NoDataTimeout  time.Duration `mapstructure:"no_data_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	LoadAttempts   int           `mapstructure:"load_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Channels       []string       `mapstructure:"channels"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	Telegram       TelegramConfig `mapstructure:"telegram"`
	Discord        DiscordConfig  `mapstructure:"discord"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Active reports whether the channel should be wired. Credentials alone are
// enough so the bare TELEGRAM_BOT_TOKEN/TELEGRAM_CHAT_ID deployment keeps working.
func (t TelegramConfig) Active() bool {
	return t.Enabled || (t.BotToken != "" && t.ChatID != "")
}

// DiscordConfig describes the optional Discord channel.
type DiscordConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BotToken  string `mapstructure:"bot_token"`
	ChannelID string `mapstructure:"channel_id"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the run journal.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// Retention is how long journalled runs are kept by prune and watch. Zero keeps everything.
	Retention       time.Duration `mapstructure:"retention"`
}

// SchedulerConfig governs the cadence of the watch command.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
	RunOnStart    bool          `mapstructure:"run_on_start"`
}

// MetricsConfig points at an optional Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HLWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// bindLegacyEnv keeps the unprefixed variable names of older deployments working.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"alerting.telegram.bot_token": {"HLWATCH_ALERTING_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"},
		"alerting.telegram.chat_id":   {"HLWATCH_ALERTING_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"},
	}
	for key, names := range bindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "hlwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("wallet.address", "0xf6B48AA4FD6786e0E4f94B009eA77702F2A36c60")
	v.SetDefault("wallet.url_template", "https://hypurrscan.io/address/"+addressPlaceholder)

	v.SetDefault("watch.window", "6m")
	v.SetDefault("watch.expected_interval", "5m")
	v.SetDefault("watch.safety_margin", "1m")
	v.SetDefault("watch.alert_cap", 5)
	v.SetDefault("watch.include_other", false)
	v.SetDefault("watch.layout", trade.HypurrscanLayout.Name)
	v.SetDefault("watch.banner", "New Hyperliquid trade detected!")

	v.SetDefault("time.location", "UTC")
	v.SetDefault("time.absolute_layouts", []string{})

	v.SetDefault("browser.kind", "chrome")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.load_timeout", "60s")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.table_selector", ".v-table")
	v.SetDefault("browser.row_selector", "tbody tr")
	v.SetDefault("browser.cell_selector", "td")
	v.SetDefault("browser.header_selector", "thead th")
	v.SetDefault("browser.no_data_text", "No data available")
	v.SetDefault("browser.min_cells", 2)
	v.SetDefault("browser.rows_timeout", "30s")
	v.SetDefault("browser.no_data_timeout", "20s")
	v.SetDefault("browser.poll_interval", "500ms")
	v.SetDefault("browser.settle_delay", "2s")
	v.SetDefault("browser.load_attempts", 3)
	v.SetDefault("browser.retry_delay", "2s")

	v.SetDefault("alerting.channels", []string{"telegram", "discord"})
	v.SetDefault("alerting.request_timeout", "10s")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.discord.enabled", false)
	v.SetDefault("alerting.discord.bot_token", "")
	v.SetDefault("alerting.discord.channel_id", "")

	// empty defaults make the keys visible to AutomaticEnv during Unmarshal
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.retention", "720h")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", true)

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "hlwatch")

	v.SetDefault("export.max_data_points", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks and normalises the wallet address.
func (c *Config) Validate() error {
	if err := c.validateWallet(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if _, err := c.ActiveLayout(); err != nil {
		return err
	}
	if _, err := c.Time.LoadLocation(); err != nil {
		return err
	}
	for unit, d := range c.Time.Units {
		if d <= 0 {
			return fmt.Errorf("time.units.%s must be greater than zero", unit)
		}
	}
	switch strings.ToLower(c.Browser.Kind) {
	case "chrome", "static":
	default:
		return fmt.Errorf("browser.kind must be chrome or static, got %q", c.Browser.Kind)
	}
	if err := c.validateAlerting(); err != nil {
		return err
	}
	if c.Database.Retention < 0 {
		return fmt.Errorf("database.retention cannot be negative")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

func (c *Config) validateWallet() error {
	if c.Wallet.Address != "" {
		if !common.IsHexAddress(c.Wallet.Address) {
			return fmt.Errorf("wallet.address %q is not a valid hex address", c.Wallet.Address)
		}
		c.Wallet.Address = common.HexToAddress(c.Wallet.Address).Hex()
	}
	if !strings.Contains(c.Wallet.URLTemplate, addressPlaceholder) {
		return fmt.Errorf("wallet.url_template must contain %s", addressPlaceholder)
	}
	return nil
}

func (c *Config) validateWatch() error {
	w := c.Watch
	if w.Window <= 0 {
		return fmt.Errorf("watch.window must be greater than zero")
	}
	if w.ExpectedInterval < 0 || w.SafetyMargin < 0 {
		return fmt.Errorf("watch.expected_interval and watch.safety_margin cannot be negative")
	}
	if w.Window < w.ExpectedInterval+w.SafetyMargin {
		return fmt.Errorf("watch.window (%s) must cover watch.expected_interval + watch.safety_margin (%s)",
			w.Window, w.ExpectedInterval+w.SafetyMargin)
	}
	if w.AlertCap <= 0 {
		return fmt.Errorf("watch.alert_cap 必须大于 0")
	}
	return nil
}

func (c *Config) validateAlerting() error {
	for _, ch := range c.Alerting.Channels {
		switch strings.ToLower(strings.TrimSpace(ch)) {
		case "telegram", "discord":
		default:
			return fmt.Errorf("alerting.channels: unknown channel %q", ch)
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	if c.Alerting.Discord.Enabled {
		if c.Alerting.Discord.BotToken == "" {
			return fmt.Errorf("alerting.discord.bot_token must be set")
		}
		if c.Alerting.Discord.ChannelID == "" {
			return fmt.Errorf("alerting.discord.channel_id must be set")
		}
	}
	return nil
}

// ChannelEnabled reports whether the named channel is both routed and active.
func (c *Config) ChannelEnabled(name string) bool {
	routed := false
	for _, ch := range c.Alerting.Channels {
		if strings.EqualFold(strings.TrimSpace(ch), name) {
			routed = true
			break
		}
	}
	if !routed {
		return false
	}
	switch strings.ToLower(name) {
	case "telegram":
		return c.Alerting.Telegram.Active()
	case "discord":
		return c.Alerting.Discord.Enabled
	}
	return false
}

// ActiveLayout returns the column layout selected by watch.layout. Configured
// layouts override built-ins of the same name.
func (c *Config) ActiveLayout() (trade.ColumnLayout, error) {
	name := strings.ToLower(c.Watch.Layout)
	layouts := trade.BuiltinLayouts()
	for key, layout := range c.Layouts {
		if layout.Name == "" {
			layout.Name = key
		}
		layouts[strings.ToLower(key)] = layout
	}
	layout, ok := layouts[name]
	if !ok {
		return trade.ColumnLayout{}, fmt.Errorf("watch.layout %q is not defined", c.Watch.Layout)
	}
	if err := layout.Validate(); err != nil {
		return trade.ColumnLayout{}, fmt.Errorf("layout %q: %w", name, err)
	}
	return layout, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
