package utils

import (
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
)

func TestCassandraConfig_Defaults(t *testing.T) {
	c := CassandraConfig{}.withDefaults()
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, 1, c.ReplicationFactor)
	assert.Equal(t, gocql.Quorum, c.Consistency)

	c = CassandraConfig{Consistency: gocql.One, ReplicationFactor: 3}.withDefaults()
	assert.Equal(t, gocql.One, c.Consistency)
	assert.Equal(t, 3, c.ReplicationFactor)
}

func TestCassandraConfig_Cluster(t *testing.T) {
	c := CassandraConfig{Hosts: []string{"a", "b"}, Username: "u", Password: "p"}.withDefaults()
	cluster := c.cluster("cdr")
	assert.Equal(t, []string{"a", "b"}, cluster.Hosts)
	assert.Equal(t, "cdr", cluster.Keyspace)
	assert.IsType(t, gocql.PasswordAuthenticator{}, cluster.Authenticator)
}

func TestKeyspaceCQL(t *testing.T) {
	assert.Equal(t,
		`CREATE KEYSPACE IF NOT EXISTS cdr WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 2}`,
		keyspaceCQL("cdr", 2))
}

func TestOpenCassandra_Validates(t *testing.T) {
	_, err := OpenCassandra(CassandraConfig{Keyspace: "cdr"})
	assert.Error(t, err)
	_, err = OpenCassandra(CassandraConfig{Hosts: []string{"127.0.0.1"}})
	assert.Error(t, err)
}
