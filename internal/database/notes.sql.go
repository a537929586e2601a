package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createNote = `-- name: CreateNote :one
INSERT INTO notes (claim_id, author_id, text)
VALUES ($1, $2, $3)
RETURNING id, claim_id, author_id, text, created_at
`

type CreateNoteParams struct {
	ClaimID  int64
	AuthorID pgtype.Int8
	Text     string
}

func (q *Queries) CreateNote(ctx context.Context, arg CreateNoteParams) (Note, error) {
	row := q.db.QueryRow(ctx, createNote, arg.ClaimID, arg.AuthorID, arg.Text)
	var i Note
	err := row.Scan(
		&i.ID,
		&i.ClaimID,
		&i.AuthorID,
		&i.Text,
		&i.CreatedAt,
	)
	return i, err
}

const listNotesByClaim = `-- name: ListNotesByClaim :many
SELECT n.id, n.claim_id, n.author_id, n.text, n.created_at, u.username
FROM notes n
LEFT JOIN users u ON u.id = n.author_id
WHERE n.claim_id = $1
ORDER BY n.created_at ASC, n.id ASC
`

func (q *Queries) ListNotesByClaim(ctx context.Context, claimID int64) ([]NoteWithAuthor, error) {
	rows, err := q.db.Query(ctx, listNotesByClaim, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []NoteWithAuthor
	for rows.Next() {
		var i NoteWithAuthor
		if err := rows.Scan(
			&i.ID,
			&i.ClaimID,
			&i.AuthorID,
			&i.Text,
			&i.CreatedAt,
			&i.AuthorName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const detachUserNotes = `-- name: DetachUserNotes :exec
UPDATE notes SET author_id = NULL WHERE author_id = $1
`

func (q *Queries) DetachUserNotes(ctx context.Context, authorID int64) error {
	_, err := q.db.Exec(ctx, detachUserNotes, authorID)
	return err
}
