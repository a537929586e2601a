package gormstore_test

import "github.com/JonMunkholm/claimdesk/internal/config"

func gormstoreConfig(driver, url string) config.DatabaseConfig {
	return config.DatabaseConfig{Driver: driver, URL: url, MaxConns: 4, MinConns: 1}
}
