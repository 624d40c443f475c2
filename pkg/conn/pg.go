// Package conn opens the Postgres connection backing the order cache store.
package conn

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Option configures the store connection. ConnString is a postgres DSN or
// URL, passed through to the driver untouched.
type Option struct {
	ConnString string
	Config     *gorm.Config
}

// Client wraps the pooled connection handed to the cache store.
type Client struct {
	db *gorm.DB
}

// New opens a connection pool from the provided options.
func New(opt Option) (*Client, error) {
	if opt.ConnString == "" {
		return nil, fmt.Errorf("conn: connection string is empty")
	}
	config := opt.Config
	if config == nil {
		config = &gorm.Config{}
	}
	db, err := gorm.Open(postgres.Open(opt.ConnString), config)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
