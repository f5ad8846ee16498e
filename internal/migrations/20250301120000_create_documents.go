package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upCreateDocuments, downCreateDocuments)
}

func upCreateDocuments(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE documents (
		collection TEXT NOT NULL,
		parent_id  TEXT NOT NULL DEFAULT '',
		id         TEXT NOT NULL,
		body       JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, parent_id, id)
	);
	CREATE INDEX idx_documents_order ON documents (collection, parent_id, (body->>'createdAt') DESC);
	CREATE INDEX idx_documents_body ON documents USING GIN (body jsonb_path_ops);
	`)
	return err
}

func downCreateDocuments(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE documents;`)
	return err
}
