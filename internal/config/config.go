// Package config resolves the SDK's runtime settings from the
// environment. A .env file in the working directory is honoured when
// present.
package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
}

type APIConfig interface {
	GetBaseURL() string
	GetAPIKey() string
	GetTimeout() time.Duration
	GetMaxRequests() int
	GetRateWindow() time.Duration
}

type SessionConfig interface {
	GetSessionFile() string
	GetSessionSecret() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	loadDotEnv()
	return mainConfig{}
}
