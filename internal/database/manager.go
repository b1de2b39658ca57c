package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	dbconfig "classhub/pkg/database"
	"classhub/pkg/interfaces"
	"classhub/pkg/types"
)

const (
	writeTimeout = 30 * time.Second
	retryDelay   = 5 * time.Second
)

// Manager is the persistent store for classes and chat traffic, backed
// by SQLite. Reads run concurrently on the connection pool; writes are
// funneled through a single goroutine to avoid SQLite write contention.
type Manager struct {
	db           *sqlx.DB
	config       *dbconfig.Config
	log          *logrus.Entry
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sqlx.DB) error
	result    chan error
}

// NewManager opens the database, applies connection settings and starts
// the write loop.
func NewManager(config *dbconfig.Config, log *logrus.Logger) (*Manager, error) {
	db, err := sqlx.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applySQLitePragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite pragmas: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		log:          log.WithField("component", "database"),
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				m.log.WithError(err).Warnf("write failed, retrying in %s", retryDelay)
				time.Sleep(retryDelay)
				err = op.operation(m.db) // retry once
				if err != nil {
					m.log.WithError(err).Error("write failed after retry")
				}
			}
			op.result <- err

		case <-m.shutdown:
			m.log.Debug("write loop shutting down")
			return
		}
	}
}

func (m *Manager) executeWrite(operation func(*sqlx.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(writeTimeout):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// classRow mirrors the classes table; participants are stored as a JSON
// array in a TEXT column.
type classRow struct {
	types.ClassSession
	ParticipantsJSON string `db:"participants"`
}

func (r *classRow) toClass() (*types.ClassSession, error) {
	class := r.ClassSession
	if err := json.Unmarshal([]byte(r.ParticipantsJSON), &class.Participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
	}
	return &class, nil
}

// CreateClass inserts a new class session.
func (m *Manager) CreateClass(ctx context.Context, class *types.ClassSession) error {
	participantsJSON, err := json.Marshal(class.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}
	if class.Participants == nil {
		participantsJSON = []byte("[]")
	}

	return m.executeWrite(func(db *sqlx.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO classes (id, title, description, host_id, participants,
			                     start_time, end_time, duration, status, max_participants, level)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			class.ID, class.Title, class.Description, class.HostID, string(participantsJSON),
			class.StartTime, class.EndTime, class.Duration, class.Status,
			class.MaxParticipants, class.Level,
		)
		if err != nil {
			return fmt.Errorf("failed to insert class: %w", err)
		}
		return nil
	})
}

// GetClass retrieves a class by ID.
func (m *Manager) GetClass(ctx context.Context, classID string) (*types.ClassSession, error) {
	var row classRow
	err := m.db.GetContext(ctx, &row, `SELECT * FROM classes WHERE id = ?`, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to query class: %w", err)
	}
	return row.toClass()
}

// UpdateClassStatus rewrites a class's status field.
func (m *Manager) UpdateClassStatus(ctx context.Context, classID, status string) error {
	return m.executeWrite(func(db *sqlx.DB) error {
		res, err := db.ExecContext(ctx, `UPDATE classes SET status = ? WHERE id = ?`, status, classID)
		if err != nil {
			return fmt.Errorf("failed to update class status: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrClassNotFound
		}
		return nil
	})
}

// UpdateParticipants replaces a class's participant list.
func (m *Manager) UpdateParticipants(ctx context.Context, classID string, participants []string) error {
	if participants == nil {
		participants = []string{}
	}
	participantsJSON, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}

	return m.executeWrite(func(db *sqlx.DB) error {
		res, err := db.ExecContext(ctx, `UPDATE classes SET participants = ? WHERE id = ?`,
			string(participantsJSON), classID)
		if err != nil {
			return fmt.Errorf("failed to update participants: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrClassNotFound
		}
		return nil
	})
}

// ListUpcoming returns non-cancelled classes starting after now, soonest
// first.
func (m *Manager) ListUpcoming(ctx context.Context, now time.Time) ([]*types.ClassSession, error) {
	return m.listClasses(ctx, `
		SELECT * FROM classes
		WHERE start_time > ? AND status != 'cancelled'
		ORDER BY start_time ASC`, now)
}

// ListOngoing returns non-cancelled classes whose window contains now.
func (m *Manager) ListOngoing(ctx context.Context, now time.Time) ([]*types.ClassSession, error) {
	return m.listClasses(ctx, `
		SELECT * FROM classes
		WHERE start_time <= ? AND end_time > ? AND status != 'cancelled'
		ORDER BY start_time ASC`, now, now)
}

// ListPrevious returns non-cancelled classes that have already ended,
// most recent first.
func (m *Manager) ListPrevious(ctx context.Context, now time.Time) ([]*types.ClassSession, error) {
	return m.listClasses(ctx, `
		SELECT * FROM classes
		WHERE end_time < ? AND status != 'cancelled'
		ORDER BY start_time DESC`, now)
}

func (m *Manager) listClasses(ctx context.Context, query string, args ...interface{}) ([]*types.ClassSession, error) {
	var rows []classRow
	if err := m.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}

	classes := make([]*types.ClassSession, 0, len(rows))
	for i := range rows {
		class, err := rows[i].toClass()
		if err != nil {
			return nil, err
		}
		classes = append(classes, class)
	}
	return classes, nil
}

// SaveMessage persists a chat message, assigning the server-side ID and
// timestamp in place. Callers must validate the message first; the save
// must complete before the message is broadcast.
func (m *Manager) SaveMessage(ctx context.Context, msg *types.ChatMessage) error {
	msg.ID = uuid.New().String()
	msg.Timestamp = time.Now().UTC()

	return m.executeWrite(func(db *sqlx.DB) error {
		_, err := db.NamedExecContext(ctx, `
			INSERT INTO chat_messages (id, session_id, sender_id, sender_name, content, kind, timestamp)
			VALUES (:id, :session_id, :sender_id, :sender_name, :content, :kind, :timestamp)`, msg)
		if err != nil {
			return fmt.Errorf("failed to insert chat message: %w", err)
		}
		return nil
	})
}

// ListMessages returns up to limit of the most recent messages for a
// session, ordered by timestamp ascending.
func (m *Manager) ListMessages(ctx context.Context, sessionID string, limit int) ([]*types.ChatMessage, error) {
	var messages []*types.ChatMessage
	err := m.db.SelectContext(ctx, &messages, `
		SELECT * FROM (
			SELECT * FROM chat_messages
			WHERE session_id = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		) ORDER BY timestamp ASC, id ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	return messages, nil
}

// SaveStudyGroupMessage persists a study-group message, assigning the
// server-side ID and creation time in place.
func (m *Manager) SaveStudyGroupMessage(ctx context.Context, msg *types.StudyGroupMessage) error {
	msg.ID = uuid.New().String()
	msg.CreatedAt = time.Now().UTC()

	return m.executeWrite(func(db *sqlx.DB) error {
		_, err := db.NamedExecContext(ctx, `
			INSERT INTO study_group_messages (id, study_group_id, sender_id, content, created_at)
			VALUES (:id, :study_group_id, :sender_id, :content, :created_at)`, msg)
		if err != nil {
			return fmt.Errorf("failed to insert study group message: %w", err)
		}
		return nil
	})
}

// ListStudyGroupMessages returns up to limit of the most recent messages
// for a study group, oldest first.
func (m *Manager) ListStudyGroupMessages(ctx context.Context, studyGroupID string, limit int) ([]*types.StudyGroupMessage, error) {
	var messages []*types.StudyGroupMessage
	err := m.db.SelectContext(ctx, &messages, `
		SELECT * FROM (
			SELECT * FROM study_group_messages
			WHERE study_group_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) ORDER BY created_at ASC, id ASC`, studyGroupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query study group messages: %w", err)
	}
	return messages, nil
}

// HealthCheck validates database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var count int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classes`).Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// GetDB returns the underlying connection for migrations and schema
// validation.
func (m *Manager) GetDB() *sql.DB {
	return m.db.DB
}

// Close shuts down the write loop and the connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func applySQLitePragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return nil
}
