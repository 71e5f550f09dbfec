package scraperepo

import "fmt"

// Default table names, qualified with the configured database at construction.
const (
	TableBlocks       = "blocks"
	TableTransactions = "transactions"
	TableTransfers    = "erc20_transfers"
	TableRPCErrors    = "rpc_errors"
)

// All tables use ReplacingMergeTree on inserted_at so that a re-scraped range
// collapses onto the natural key given in ORDER BY.
const tableEngine = `ENGINE = ReplacingMergeTree(inserted_at)`

func createBlocksTableQuery(table, onCluster string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s %s (
		evm_chain_id UInt64,
		block_number UInt64,
		hash String,
		parent_hash String,
		block_time DateTime('UTC'),
		miner String,
		gas_limit UInt64,
		gas_used UInt64,
		base_fee_per_gas Nullable(UInt256),
		size UInt64,
		transaction_count UInt32,
		inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
	)
	%s
	ORDER BY (evm_chain_id, block_number)`, table, onCluster, tableEngine)
}

func createTransactionsTableQuery(table, onCluster string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s %s (
		evm_chain_id UInt64,
		block_number UInt64,
		block_hash String,
		hash String,
		transaction_index UInt64,
		from_address String,
		to_address Nullable(String),
		value UInt256,
		gas UInt64,
		gas_price Nullable(UInt256),
		nonce UInt64,
		input String,
		inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
	)
	%s
	ORDER BY (evm_chain_id, block_number, hash)`, table, onCluster, tableEngine)
}

func createTransfersTableQuery(table, onCluster string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s %s (
		evm_chain_id UInt64,
		block_number UInt64,
		block_hash String,
		transaction_hash String,
		log_index UInt64,
		token_address String,
		from_address String,
		to_address String,
		value UInt256,
		inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
	)
	%s
	ORDER BY (evm_chain_id, transaction_hash, log_index)`, table, onCluster, tableEngine)
}

func createRPCErrorsTableQuery(table, onCluster string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s %s (
		evm_chain_id UInt64,
		method LowCardinality(String),
		subject String,
		url String,
		code Int64,
		message String,
		inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
	)
	%s
	ORDER BY (evm_chain_id, method, subject)`, table, onCluster, tableEngine)
}

func insertBlockQuery(table string) string {
	return `INSERT INTO ` + table + ` (evm_chain_id, block_number, hash, parent_hash, block_time, miner,
		gas_limit, gas_used, base_fee_per_gas, size, transaction_count) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
}

func insertTransactionQuery(table string) string {
	return `INSERT INTO ` + table + ` (evm_chain_id, block_number, block_hash, hash, transaction_index,
		from_address, to_address, value, gas, gas_price, nonce, input) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
}

func insertTransferQuery(table string) string {
	return `INSERT INTO ` + table + ` (evm_chain_id, block_number, block_hash, transaction_hash, log_index,
		token_address, from_address, to_address, value) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
}

func insertRPCErrorQuery(table string) string {
	return `INSERT INTO ` + table + ` (evm_chain_id, method, subject, url, code, message) VALUES (?, ?, ?, ?, ?, ?)`
}
