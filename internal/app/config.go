package app

import (
	"os"
	"strings"
	"time"

	"github.com/jeremywohl/flatten"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/net-toolbox/onboarder/internal/model"
)

const (
	DefaultConcurrency        = 5
	defaultNatsConnectTimeout = 60 * time.Second
	defaultTaskDBPath         = "onboarder-tasks.db"
)

var (
	ErrConfig = errors.New("configuration error")
)

// Configuration holds application configuration read from a YAML file or set
// by env variables.
//
// nolint:govet // prefer readability over field alignment optimization for this case.
type Configuration struct {
	// LogLevel is the app verbose logging level.
	// one of - info, debug, trace
	LogLevel string `mapstructure:"log_level"`

	// AppKind is the application kind - worker / client
	AppKind model.AppKind `mapstructure:"app_kind"`

	// Concurrency is the number of tasks a worker runs simultaneously.
	Concurrency int `mapstructure:"concurrency"`

	// TaskDBPath is the sqlite file backing the task store.
	TaskDBPath string `mapstructure:"task_db_path"`

	// Onboarding policy settings.
	Settings model.Settings `mapstructure:"onboarding"`

	// NetboxOptions defines the inventory client configuration parameters.
	NetboxOptions *NetboxOptions `mapstructure:"netbox"`

	// NatsOptions defines the task queue connection parameters.
	NatsOptions *NatsOptions `mapstructure:"nats"`
}

// NetboxOptions defines configuration for the NetBox inventory client.
type NetboxOptions struct {
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`
}

// NatsOptions defines configuration for the NATS connection.
type NatsOptions struct {
	URL            string        `mapstructure:"url"`
	CredsFile      string        `mapstructure:"creds_file"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LoadConfiguration loads application configuration
//
// Reads in the cfgFile when available and overrides from environment variables.
func (a *App) LoadConfiguration(cfgFile string) error {
	a.v.SetConfigType("yaml")
	a.v.SetEnvPrefix(model.AppName)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	// these are initialized here so viper can read in configuration from env vars
	// once https://github.com/spf13/viper/pull/1429 is merged, this can go.
	a.Config.NetboxOptions = &NetboxOptions{}
	a.Config.NatsOptions = &NatsOptions{}
	a.Config.Settings = model.DefaultSettings()

	if cfgFile != "" {
		fh, err := os.Open(cfgFile)
		if err != nil {
			return errors.Wrap(ErrConfig, err.Error())
		}

		if err = a.v.ReadConfig(fh); err != nil {
			return errors.Wrap(ErrConfig, "ReadConfig error:"+err.Error())
		}
	}

	a.v.SetDefault("log.level", "info")
	a.v.SetDefault("concurrency", DefaultConcurrency)
	a.v.SetDefault("task.db.path", defaultTaskDBPath)

	if err := a.envBindVars(); err != nil {
		return errors.Wrap(ErrConfig, "env var bind error:"+err.Error())
	}

	if err := a.v.Unmarshal(a.Config); err != nil {
		return errors.Wrap(ErrConfig, "Unmarshal error: "+err.Error())
	}

	a.envVarAppOverrides()

	if a.Config.Concurrency <= 0 {
		a.Config.Concurrency = DefaultConcurrency
	}

	if a.Config.TaskDBPath == "" {
		a.Config.TaskDBPath = defaultTaskDBPath
	}

	return nil
}

func (a *App) envVarAppOverrides() {
	if a.v.GetString("log.level") != "" {
		a.Config.LogLevel = a.v.GetString("log.level")
	}
}

// envBindVars binds environment variables to the struct
// without a configuration file being unmarshalled,
// this is a workaround for a viper bug,
//
// This can be replaced by the solution in https://github.com/spf13/viper/pull/1429
// once that PR is merged.
func (a *App) envBindVars() error {
	envKeysMap := map[string]interface{}{}
	if err := mapstructure.Decode(a.Config, &envKeysMap); err != nil {
		return err
	}

	// Flatten nested conf map
	flat, err := flatten.Flatten(envKeysMap, "", flatten.DotStyle)
	if err != nil {
		return errors.Wrap(err, "Unable to flatten config")
	}

	for k := range flat {
		if err := a.v.BindEnv(k); err != nil {
			return errors.Wrap(ErrConfig, "env var bind error: "+err.Error())
		}
	}

	return nil
}

// NatsParams returns the validated NATS connection parameters.
func (a *App) NatsParams() (nurl, credsFile string, connectTimeout time.Duration, err error) {
	if a.v.GetString("nats.url") != "" {
		a.Config.NatsOptions.URL = a.v.GetString("nats.url")
	}

	if a.Config.NatsOptions.URL == "" {
		return "", "", 0, errors.New("missing parameter: nats.url")
	}

	if a.v.GetString("nats.creds.file") != "" {
		a.Config.NatsOptions.CredsFile = a.v.GetString("nats.creds.file")
	}

	connectTimeout = a.Config.NatsOptions.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = defaultNatsConnectTimeout
	}

	return a.Config.NatsOptions.URL, a.Config.NatsOptions.CredsFile, connectTimeout, nil
}

// NetboxParams returns the validated NetBox client parameters.
func (a *App) NetboxParams() (endpoint, token string, err error) {
	if a.v.GetString("netbox.endpoint") != "" {
		a.Config.NetboxOptions.Endpoint = a.v.GetString("netbox.endpoint")
	}

	if a.Config.NetboxOptions.Endpoint == "" {
		return "", "", errors.New("missing parameter: netbox.endpoint")
	}

	if a.v.GetString("netbox.token") != "" {
		a.Config.NetboxOptions.Token = a.v.GetString("netbox.token")
	}

	if a.Config.NetboxOptions.Token == "" {
		return "", "", errors.New("missing parameter: netbox.token")
	}

	return a.Config.NetboxOptions.Endpoint, a.Config.NetboxOptions.Token, nil
}
