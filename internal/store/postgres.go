package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/campuslearn/escalation-platform/internal/model"
)

//go:embed migrations.sql
var migrations embed.FS

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStore is the Postgres-backed Store implementation.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, verifies it and applies the schema.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.initializeSchema(); err != nil {
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) initializeSchema() error {
	schema, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("executing migrations: %w", err)
	}

	return nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const conversationColumns = `id, owner_id, title, message_count, is_active, context_limit_reached, created_at, updated_at`

func scanConversation(row interface{ Scan(...any) error }) (*model.Conversation, error) {
	var c model.Conversation
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.MessageCount,
		&c.IsActive, &c.ContextLimitReached, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	return &c, nil
}

// ActiveConversation returns the newest active conversation for a user.
func (s *PostgresStore) ActiveConversation(ctx context.Context, userID string) (*model.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE owner_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1`

	return scanConversation(s.db.QueryRowContext(ctx, query, userID))
}

// CreateConversation inserts a new conversation row.
func (s *PostgresStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	query := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID, conv.OwnerID, conv.Title, conv.MessageCount,
		conv.IsActive, conv.ContextLimitReached, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}
	return nil
}

// GetConversation returns a conversation by id.
func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// ConversationHistory returns a user's conversations, most recently updated first.
func (s *PostgresStore) ConversationHistory(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE owner_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversation history: %w", err)
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

// AddMessage inserts a message row.
func (s *PostgresStore) AddMessage(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, content, is_from_assistant,
			escalated_to_tutor, tutor_module, confidence_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, msg.Content, msg.IsFromAssistant,
		msg.EscalatedToTutor, msg.TutorModule, msg.ConfidenceScore, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("adding message: %w", err)
	}
	return nil
}

// Messages returns all messages in a conversation in creation order.
func (s *PostgresStore) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	query := `
		SELECT id, conversation_id, content, is_from_assistant,
			escalated_to_tutor, tutor_module, confidence_score, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.IsFromAssistant,
			&m.EscalatedToTutor, &m.TutorModule, &m.ConfidenceScore, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountMessages returns the true stored message count for a conversation.
func (s *PostgresStore) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

// SetConversationCount writes back the recomputed count and limit flag.
func (s *PostgresStore) SetConversationCount(ctx context.Context, id string, count int, limitReached bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET message_count = $2, context_limit_reached = $3, updated_at = NOW()
		WHERE id = $1`, id, count, limitReached)
	if err != nil {
		return fmt.Errorf("updating message count: %w", err)
	}
	return checkAffected(res)
}

// ClearConversation deletes all messages and resets the counters.
func (s *PostgresStore) ClearConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning clear transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = $1`, id); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET message_count = 0, context_limit_reached = FALSE, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("resetting conversation: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}

	return tx.Commit()
}

// DeactivateConversation flags a conversation inactive without deleting it.
func (s *PostgresStore) DeactivateConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivating conversation: %w", err)
	}
	return checkAffected(res)
}

const escalationColumns = `id, conversation_id, student_id, tutor_id, module_code,
	original_question, escalation_reason, status, priority, message_thread_id,
	assigned_at, resolved_at, created_at, updated_at`

func scanEscalation(row interface{ Scan(...any) error }) (*model.Escalation, error) {
	var e model.Escalation
	err := row.Scan(&e.ID, &e.ConversationID, &e.StudentID, &e.TutorID, &e.ModuleCode,
		&e.OriginalQuestion, &e.EscalationReason, &e.Status, &e.Priority, &e.MessageThreadID,
		&e.AssignedAt, &e.ResolvedAt, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning escalation: %w", err)
	}
	return &e, nil
}

// CreateEscalation inserts a new escalation ticket.
func (s *PostgresStore) CreateEscalation(ctx context.Context, esc *model.Escalation) error {
	query := `
		INSERT INTO escalations (` + escalationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.ExecContext(ctx, query,
		esc.ID, esc.ConversationID, esc.StudentID, esc.TutorID, esc.ModuleCode,
		esc.OriginalQuestion, esc.EscalationReason, esc.Status, esc.Priority, esc.MessageThreadID,
		esc.AssignedAt, esc.ResolvedAt, esc.CreatedAt, esc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating escalation: %w", err)
	}
	return nil
}

// GetEscalation returns an escalation by id.
func (s *PostgresStore) GetEscalation(ctx context.Context, id string) (*model.Escalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE id = $1`
	return scanEscalation(s.db.QueryRowContext(ctx, query, id))
}

// PendingEscalations returns pending tickets, highest priority first, oldest
// first within a priority.
func (s *PostgresStore) PendingEscalations(ctx context.Context) ([]model.Escalation, error) {
	query := `
		SELECT ` + escalationColumns + `
		FROM escalations
		WHERE status = 'pending'
		ORDER BY CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC,
			created_at ASC`

	return s.queryEscalations(ctx, query)
}

// EscalationsForTutor returns a tutor's assigned and resolved tickets.
func (s *PostgresStore) EscalationsForTutor(ctx context.Context, tutorID string) ([]model.Escalation, error) {
	query := `
		SELECT ` + escalationColumns + `
		FROM escalations
		WHERE tutor_id = $1 AND status IN ('assigned', 'resolved')
		ORDER BY created_at DESC`

	return s.queryEscalations(ctx, query, tutorID)
}

func (s *PostgresStore) queryEscalations(ctx context.Context, query string, args ...any) ([]model.Escalation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying escalations: %w", err)
	}
	defer rows.Close()

	var escs []model.Escalation
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		escs = append(escs, *e)
	}
	return escs, rows.Err()
}

// AssignedCountsByTutor returns currently assigned counts keyed by tutor id.
func (s *PostgresStore) AssignedCountsByTutor(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tutor_id, COUNT(*)
		FROM escalations
		WHERE status = 'assigned' AND tutor_id IS NOT NULL
		GROUP BY tutor_id`)
	if err != nil {
		return nil, fmt.Errorf("querying assigned counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tutorID string
		var count int
		if err := rows.Scan(&tutorID, &count); err != nil {
			return nil, fmt.Errorf("scanning assigned count: %w", err)
		}
		counts[tutorID] = count
	}
	return counts, rows.Err()
}

// AssignEscalation performs the assignment as a single conditional update.
// The status check and the capacity check happen inside the statement, so
// two concurrent assignments cannot both read a stale load count.
func (s *PostgresStore) AssignEscalation(ctx context.Context, id, tutorID string, capacity int, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE escalations
		SET tutor_id = $2, status = 'assigned', assigned_at = $3, updated_at = $3
		WHERE id = $1
			AND status = 'pending'
			AND (SELECT COUNT(*) FROM escalations WHERE tutor_id = $2 AND status = 'assigned') < $4`,
		id, tutorID, now, capacity)
	if err != nil {
		return fmt.Errorf("assigning escalation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assigning escalation: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Disambiguate the zero-row case.
	esc, err := s.GetEscalation(ctx, id)
	if err != nil {
		return err
	}
	if esc.Status != model.EscalationPending {
		return ErrInvalidTransition
	}
	return ErrTutorAtCapacity
}

// SetMessageThread records the message thread id opened for an assignment.
func (s *PostgresStore) SetMessageThread(ctx context.Context, id, threadID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE escalations SET message_thread_id = $2, updated_at = NOW() WHERE id = $1`,
		id, threadID)
	if err != nil {
		return fmt.Errorf("setting message thread: %w", err)
	}
	return checkAffected(res)
}

// TransitionEscalation moves a ticket between statuses, guarding the current
// status inside the update.
func (s *PostgresStore) TransitionEscalation(ctx context.Context, id string, from, to model.EscalationStatus, now time.Time) error {
	if !model.CanTransition(from, to) {
		return ErrInvalidTransition
	}

	var res sql.Result
	var err error
	if to == model.EscalationResolved {
		res, err = s.db.ExecContext(ctx, `
			UPDATE escalations SET status = $3, resolved_at = $4, updated_at = $4
			WHERE id = $1 AND status = $2`, id, from, to, now)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE escalations SET status = $3, updated_at = $4
			WHERE id = $1 AND status = $2`, id, from, to, now)
	}
	if err != nil {
		return fmt.Errorf("transitioning escalation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transitioning escalation: %w", err)
	}
	if affected == 1 {
		return nil
	}

	if _, err := s.GetEscalation(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

// EscalationStats aggregates ticket counts by status.
func (s *PostgresStore) EscalationStats(ctx context.Context) (*model.EscalationStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM escalations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("querying escalation stats: %w", err)
	}
	defer rows.Close()

	stats := &model.EscalationStats{}
	for rows.Next() {
		var status model.EscalationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning escalation stats: %w", err)
		}
		stats.Total += count
		switch status {
		case model.EscalationPending:
			stats.Pending = count
		case model.EscalationAssigned:
			stats.Assigned = count
		case model.EscalationResolved:
			stats.Resolved = count
		case model.EscalationCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}

// CreateTutorNotification inserts a notification delivery record.
func (s *PostgresStore) CreateTutorNotification(ctx context.Context, n *model.TutorNotification) error {
	query := `
		INSERT INTO tutor_notifications (id, tutor_id, escalation_id,
			notification_type, status, sent_at, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.TutorID, n.EscalationID, n.NotificationType, n.Status,
		n.SentAt, n.ReadAt, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating tutor notification: %w", err)
	}
	return nil
}

// NotificationsForEscalation returns the delivery records for a ticket.
func (s *PostgresStore) NotificationsForEscalation(ctx context.Context, escalationID string) ([]model.TutorNotification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tutor_id, escalation_id, notification_type, status, sent_at, read_at, created_at
		FROM tutor_notifications
		WHERE escalation_id = $1
		ORDER BY created_at ASC`, escalationID)
	if err != nil {
		return nil, fmt.Errorf("querying tutor notifications: %w", err)
	}
	defer rows.Close()

	var ns []model.TutorNotification
	for rows.Next() {
		var n model.TutorNotification
		if err := rows.Scan(&n.ID, &n.TutorID, &n.EscalationID, &n.NotificationType,
			&n.Status, &n.SentAt, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tutor notification: %w", err)
		}
		ns = append(ns, n)
	}
	return ns, rows.Err()
}

func checkAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
