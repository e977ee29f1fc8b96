package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const ticketColumns = `id, title, description, priority, status, category, created_by, assigned_to,
               attachments, participants, history, comments, created_at, updated_at`

// TicketRepository encapsulates ticket persistence. History, comments and
// participants travel with the ticket row, so a single-row lock serializes
// every read-modify-write against the aggregate.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Ticket, error)
	UpdateAtomic(ctx context.Context, id string, mutate func(*domain.Ticket) error) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	ticket.Attachments = normalizedAttachments(ticket.Attachments)
	participants, history, comments, err := marshalEmbedded(ticket)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (title, description, priority, status, category, created_by, assigned_to,
                             attachments, participants, history, comments)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.Category,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.Attachments,
		participants,
		history,
		comments,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets ORDER BY updated_at DESC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListForUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE created_by=$1 OR assigned_to=$1 ORDER BY updated_at DESC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// UpdateAtomic loads the ticket under a row lock, applies the mutation and
// writes the result back in the same transaction. A mutation error rolls the
// transaction back, so the caller sees either the full change or none of it.
func (r *ticketRepository) UpdateAtomic(ctx context.Context, id string, mutate func(*domain.Ticket) error) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 FOR UPDATE`, ticketColumns)
	ticket, err := scanTicket(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := mutate(ticket); err != nil {
		return nil, err
	}

	ticket.Attachments = normalizedAttachments(ticket.Attachments)
	participants, history, comments, err := marshalEmbedded(ticket)
	if err != nil {
		return nil, err
	}
	const update = `
        UPDATE tickets SET title=$1, description=$2, priority=$3, status=$4, category=$5,
            assigned_to=$6, attachments=$7, participants=$8, history=$9, comments=$10, updated_at=NOW()
        WHERE id=$11
        RETURNING updated_at`
	if err := tx.QueryRow(ctx, update,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.Category,
		ticket.AssignedTo,
		ticket.Attachments,
		participants,
		history,
		comments,
		ticket.ID,
	).Scan(&ticket.UpdatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// normalizedAttachments replaces a nil slice with an empty one. pgx encodes a
// nil []string as SQL NULL, which the NOT NULL attachments column rejects.
func normalizedAttachments(attachments []string) []string {
	if attachments == nil {
		return []string{}
	}
	return attachments
}

func marshalEmbedded(ticket *domain.Ticket) (participants, history, comments []byte, err error) {
	if participants, err = json.Marshal(ticket.Participants); err != nil {
		return nil, nil, nil, err
	}
	if history, err = json.Marshal(ticket.History); err != nil {
		return nil, nil, nil, err
	}
	if comments, err = json.Marshal(ticket.Comments); err != nil {
		return nil, nil, nil, err
	}
	return participants, history, comments, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket       domain.Ticket
		participants []byte
		history      []byte
		comments     []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Category,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.Attachments,
		&participants,
		&history,
		&comments,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalEmbedded(&ticket, participants, history, comments); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func unmarshalEmbedded(ticket *domain.Ticket, participants, history, comments []byte) error {
	if err := json.Unmarshal(participants, &ticket.Participants); err != nil {
		return err
	}
	if err := json.Unmarshal(history, &ticket.History); err != nil {
		return err
	}
	return json.Unmarshal(comments, &ticket.Comments)
}
