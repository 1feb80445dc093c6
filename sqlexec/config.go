package sqlexec

import (
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// Config describes how to reach the backing store.
type Config struct {
	// Driver selects the dialect and database/sql driver.
	Driver Dialect
	// Host and Port locate the server. Port 0 uses the driver default.
	// Ignored for SQLite.
	Host string
	Port int
	// Database is the database name, or the file path for SQLite.
	Database string
	User     string
	Password string
	// Params are extra driver parameters appended to the DSN.
	Params map[string]string
	// DSN, when set, is passed to the driver verbatim and the fields above
	// except Driver are ignored.
	DSN string
}

// DataSourceName returns the driver specific DSN.
func (c *Config) DataSourceName() (string, error) {
	if err := c.Driver.Validate(); err != nil {
		return "", err
	}
	if c.DSN != "" {
		return c.DSN, nil
	}
	if c.Database == "" {
		return "", errors.New("database name is required")
	}
	switch c.Driver {
	case MySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(c.host(), strconv.Itoa(c.port()))
		cfg.DBName = c.Database
		cfg.ParseTime = true
		// Report matched rather than changed rows from UPDATE.
		cfg.ClientFoundRows = true
		if len(c.Params) > 0 {
			cfg.Params = make(map[string]string, len(c.Params))
			for k, v := range c.Params {
				cfg.Params[k] = v
			}
		}
		return cfg.FormatDSN(), nil
	case Postgres:
		u := url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(c.host(), strconv.Itoa(c.port())),
			Path:     "/" + c.Database,
			RawQuery: c.encodeParams(),
		}
		if c.User != "" {
			if c.Password != "" {
				u.User = url.UserPassword(c.User, c.Password)
			} else {
				u.User = url.User(c.User)
			}
		}
		return u.String(), nil
	default:
		if q := c.encodeParams(); q != "" {
			return c.Database + "?" + q, nil
		}
		return c.Database, nil
	}
}

func (c *Config) host() string {
	if c.Host == "" {
		return "localhost"
	}
	return c.Host
}

func (c *Config) port() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.Driver == Postgres {
		return 5432
	}
	return 3306
}

func (c *Config) encodeParams() string {
	if len(c.Params) == 0 {
		return ""
	}
	v := url.Values{}
	for k, p := range c.Params {
		v.Set(k, p)
	}
	return v.Encode()
}
