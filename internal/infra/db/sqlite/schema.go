package sqlite

// Schema holds the ledger tables. Blocks are never updated or deleted.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_blocks (
	block_index      INTEGER PRIMARY KEY,
	timestamp        TEXT NOT NULL,
	amendment_id     TEXT NOT NULL,
	transaction_type TEXT NOT NULL,
	data_json        TEXT NOT NULL,
	previous_hash    TEXT NOT NULL,
	hash             TEXT NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_ledger_blocks_amendment ON ledger_blocks(amendment_id);

CREATE TRIGGER IF NOT EXISTS ledger_blocks_no_update
BEFORE UPDATE ON ledger_blocks
BEGIN
	SELECT RAISE(ABORT, 'ledger blocks are append-only');
END;

CREATE TRIGGER IF NOT EXISTS ledger_blocks_no_delete
BEFORE DELETE ON ledger_blocks
BEGIN
	SELECT RAISE(ABORT, 'ledger blocks are append-only');
END;
`
