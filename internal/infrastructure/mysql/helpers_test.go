package mysql

import "stockwise/internal/config"

func configFor(host string, port int) config.DatabaseConfig {
	return config.DatabaseConfig{Host: host, Port: port, User: "u", Password: "p", Name: "stock"}
}
