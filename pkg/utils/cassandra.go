package utils

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

// CassandraConfig controls gocql session behavior.
type CassandraConfig struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string

	Timeout           time.Duration
	ConnectTimeout    time.Duration
	ReplicationFactor int
	Consistency       gocql.Consistency
}

func (c CassandraConfig) withDefaults() CassandraConfig {
	out := c
	if out.Timeout <= 0 {
		out.Timeout = 5 * time.Second
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 10 * time.Second
	}
	if out.ReplicationFactor <= 0 {
		out.ReplicationFactor = 1
	}
	if out.Consistency == gocql.Any {
		out.Consistency = gocql.Quorum
	}
	return out
}

func (c CassandraConfig) cluster(keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(c.Hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = c.Consistency
	cluster.Timeout = c.Timeout
	cluster.ConnectTimeout = c.ConnectTimeout
	if c.Username != "" && c.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: c.Username,
			Password: c.Password,
		}
	}
	return cluster
}

// keyspaceCQL uses SimpleStrategy; multi-DC deployments should create the keyspace themselves.
func keyspaceCQL(keyspace string, rf int) string {
	return fmt.Sprintf(
		`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}`,
		keyspace, rf,
	)
}

// OpenCassandra creates the keyspace when missing and returns a session bound to it.
func OpenCassandra(cfg CassandraConfig) (*gocql.Session, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("cassandra hosts are required")
	}
	if cfg.Keyspace == "" {
		return nil, fmt.Errorf("cassandra keyspace is required")
	}

	boot, err := cfg.cluster("").CreateSession()
	if err != nil {
		return nil, fmt.Errorf("cassandra connect failed: %w", err)
	}
	err = boot.Query(keyspaceCQL(cfg.Keyspace, cfg.ReplicationFactor)).Exec()
	boot.Close()
	if err != nil {
		return nil, fmt.Errorf("cassandra create keyspace: %w", err)
	}

	session, err := cfg.cluster(cfg.Keyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("cassandra session failed: %w", err)
	}
	return session, nil
}
