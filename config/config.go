package config

import (
	"fmt"
	"os"
	"path"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

// SysConfig system-level settings
type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// WebConfig web server settings
type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	// PublicURL is the externally reachable base URL of this service; it is
	// used to build the gateway notification callback (PublicURL + /ipn).
	PublicURL string `yaml:"public_url" json:"public_url"`
}

// DBConfig database settings for the payment audit mirror
type DBConfig struct {
	Type   string `yaml:"type" json:"type"`
	Host   string `yaml:"host" json:"host"`
	Port   int    `yaml:"port" json:"port"`
	Name   string `yaml:"name" json:"name"`
	User   string `yaml:"user" json:"user"`
	Passwd string `yaml:"passwd" json:"passwd"`
	Debug  bool   `yaml:"debug" json:"debug"`
}

// MercadopagoConfig payment gateway settings
type MercadopagoConfig struct {
	ApiUrl      string `yaml:"api_url" json:"api_url"`
	AccessToken string `yaml:"access_token" json:"access_token"`
	// TestMode selects the sandbox checkout link instead of the production one.
	TestMode bool `yaml:"test_mode" json:"test_mode"`
	// Timeout bounds every gateway call, in seconds.
	Timeout int `yaml:"timeout" json:"timeout"`
}

// RotationConfig post-payment link rotation settings
type RotationConfig struct {
	// Delay before the first re-issue attempt, in seconds.
	Delay int `yaml:"delay" json:"delay"`
	// BaseDelay is the backoff unit between failed attempts, in seconds;
	// the wait after attempt n is BaseDelay*n.
	BaseDelay   int `yaml:"base_delay" json:"base_delay"`
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// LogConfig logger settings
type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

// CatalogItem one sellable item bound to a device id
type CatalogItem struct {
	Device   string  `yaml:"device" json:"device"`
	Title    string  `yaml:"title" json:"title"`
	Price    float64 `yaml:"price" json:"price"`
	Currency string  `yaml:"currency" json:"currency"`
}

type AppConfig struct {
	System      SysConfig         `yaml:"system" json:"system"`
	Web         WebConfig         `yaml:"web" json:"web"`
	Database    DBConfig          `yaml:"database" json:"database"`
	Mercadopago MercadopagoConfig `yaml:"mercadopago" json:"mercadopago"`
	Rotation    RotationConfig    `yaml:"rotation" json:"rotation"`
	Logger      LogConfig         `yaml:"logger" json:"logger"`
	Catalog     []CatalogItem     `yaml:"catalog" json:"catalog"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

// NotifyURL is the webhook endpoint handed to the gateway on every
// preference creation.
func (c *AppConfig) NotifyURL() string {
	return c.Web.PublicURL + "/ipn"
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "vendlink",
		Location: "America/Argentina/Buenos_Aires",
		Workdir:  "/var/vendlink",
		Debug:    true,
	},
	Web: WebConfig{
		Host:      "0.0.0.0",
		Port:      1980,
		PublicURL: "http://127.0.0.1:1980",
	},
	Database: DBConfig{
		Type: "sqlite",
		Name: "vendlink",
	},
	Mercadopago: MercadopagoConfig{
		ApiUrl:   "https://api.mercadopago.com",
		TestMode: true,
		Timeout:  10,
	},
	Rotation: RotationConfig{
		Delay:       2,
		BaseDelay:   5,
		MaxAttempts: 5,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/vendlink/vendlink.log",
	},
	Catalog: []CatalogItem{
		{Device: "bar1", Title: "Pinta Rubia", Price: 100, Currency: "ARS"},
	},
}

func setEnvValue(name string, f func(v string)) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		f(evalue)
	}
}

func setEnvBoolValue(name string, f func(v bool)) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		f(evalue == "true" || evalue == "1" || evalue == "on")
	}
}

func setEnvIntValue(name string, f func(v int)) {
	var evalue = os.Getenv(name)
	if evalue == "" {
		return
	}
	f(cast.ToInt(evalue))
}

// LoadConfig loads the YAML configuration from cfile, falling back to the
// built-in defaults, and applies VENDLINK_* environment overrides last.
func LoadConfig(cfile string) *AppConfig {
	appconfig := new(AppConfig)
	*appconfig = *DefaultAppConfig
	if cfile != "" {
		if _, err := os.Stat(cfile); err == nil {
			data, err := os.ReadFile(cfile)
			if err != nil {
				panic(err)
			}
			// unmarshal over the defaults so a partial file only overrides
			// the sections it names
			if err := yaml.Unmarshal(data, appconfig); err != nil {
				panic(fmt.Errorf("parse config %s: %w", cfile, err))
			}
		}
	}

	setEnvValue("VENDLINK_SYSTEM_WORKDIR", func(v string) { appconfig.System.Workdir = v })
	setEnvBoolValue("VENDLINK_SYSTEM_DEBUG", func(v bool) { appconfig.System.Debug = v })

	setEnvValue("VENDLINK_WEB_HOST", func(v string) { appconfig.Web.Host = v })
	setEnvIntValue("VENDLINK_WEB_PORT", func(v int) { appconfig.Web.Port = v })
	setEnvValue("VENDLINK_PUBLIC_URL", func(v string) { appconfig.Web.PublicURL = v })

	setEnvValue("VENDLINK_DB_TYPE", func(v string) { appconfig.Database.Type = v })
	setEnvValue("VENDLINK_DB_HOST", func(v string) { appconfig.Database.Host = v })
	setEnvIntValue("VENDLINK_DB_PORT", func(v int) { appconfig.Database.Port = v })
	setEnvValue("VENDLINK_DB_NAME", func(v string) { appconfig.Database.Name = v })
	setEnvValue("VENDLINK_DB_USER", func(v string) { appconfig.Database.User = v })
	setEnvValue("VENDLINK_DB_PWD", func(v string) { appconfig.Database.Passwd = v })

	setEnvValue("VENDLINK_MP_ACCESS_TOKEN", func(v string) { appconfig.Mercadopago.AccessToken = v })
	setEnvValue("VENDLINK_MP_API_URL", func(v string) { appconfig.Mercadopago.ApiUrl = v })
	setEnvBoolValue("VENDLINK_MP_TEST_MODE", func(v bool) { appconfig.Mercadopago.TestMode = v })
	setEnvIntValue("VENDLINK_MP_TIMEOUT", func(v int) { appconfig.Mercadopago.Timeout = v })

	setEnvIntValue("VENDLINK_ROTATION_DELAY", func(v int) { appconfig.Rotation.Delay = v })
	setEnvIntValue("VENDLINK_ROTATION_BASE_DELAY", func(v int) { appconfig.Rotation.BaseDelay = v })
	setEnvIntValue("VENDLINK_ROTATION_MAX_ATTEMPTS", func(v int) { appconfig.Rotation.MaxAttempts = v })

	return appconfig
}
