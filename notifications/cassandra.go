package notifications

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"trello-project/microservices/taskgraph-service/logging"
	"trello-project/microservices/taskgraph-service/models"

	"github.com/gocql/gocql"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)

type CassandraNotifier struct {
	session *gocql.Session
}

// NewCassandraNotifier connects to hosts (comma separated), creates the
// keyspace and table when missing and returns a notifier bound to them.
func NewCassandraNotifier(hosts, keyspace string) (*CassandraNotifier, error) {
	if !keyspacePattern.MatchString(keyspace) {
		return nil, fmt.Errorf("invalid keyspace name %q", keyspace)
	}

	cluster := gocql.NewCluster(splitHosts(hosts)...)
	cluster.Keyspace = "system"
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Cassandra: %w", err)
	}

	err = session.Query(fmt.Sprintf(
		`CREATE KEYSPACE IF NOT EXISTS %s
         WITH replication = {
             'class': 'SimpleStrategy',
             'replication_factor': 1
         }`, keyspace)).Exec()
	session.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to create keyspace %s: %w", keyspace, err)
	}

	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.One
	session, err = cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to keyspace %s: %w", keyspace, err)
	}

	n := &CassandraNotifier{session: session}
	if err := n.createTable(); err != nil {
		session.Close()
		return nil, err
	}
	logging.Logger.Infof("Event ID: CASSANDRA_CONNECTED, Description: Connected to Cassandra keyspace %s", keyspace)
	return n, nil
}

func (n *CassandraNotifier) Close() {
	n.session.Close()
	logging.Logger.Info("Event ID: CASSANDRA_CLOSED, Description: Cassandra session closed")
}

func (n *CassandraNotifier) createTable() error {
	err := n.session.Query(
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID,
			user_id TEXT,
			message TEXT,
			created_at TIMESTAMP,
			is_read BOOLEAN,
			PRIMARY KEY ((user_id), created_at, id)
		) WITH CLUSTERING ORDER BY (created_at DESC, id ASC)`).Exec()
	if err != nil {
		return fmt.Errorf("failed to create notifications table: %w", err)
	}
	return nil
}

func (n *CassandraNotifier) Notify(ctx context.Context, notification models.Notification) error {
	id := gocql.TimeUUID()
	if notification.ID != "" {
		parsed, err := gocql.ParseUUID(notification.ID)
		if err != nil {
			return fmt.Errorf("invalid notification id %q: %w", notification.ID, err)
		}
		id = parsed
	}

	err := n.session.Query(
		`INSERT INTO notifications (id, user_id, message, created_at, is_read)
		 VALUES (?, ?, ?, ?, ?)`,
		id, notification.UserID, notification.Message, notification.CreatedAt, notification.IsRead,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to insert notification for %s: %w", notification.UserID, err)
	}
	return nil
}

// ListForUser returns the user's notifications, newest first.
func (n *CassandraNotifier) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	iter := n.session.Query(
		`SELECT id, user_id, message, created_at, is_read FROM notifications WHERE user_id = ?`,
		userID,
	).WithContext(ctx).Iter()

	out := []models.Notification{}
	var (
		id           gocql.UUID
		notification models.Notification
	)
	for iter.Scan(&id, &notification.UserID, &notification.Message, &notification.CreatedAt, &notification.IsRead) {
		notification.ID = id.String()
		out = append(out, notification)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list notifications for %s: %w", userID, err)
	}
	return out, nil
}

func splitHosts(hosts string) []string {
	out := []string{}
	for _, h := range strings.Split(hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		out = append(out, "127.0.0.1")
	}
	return out
}
