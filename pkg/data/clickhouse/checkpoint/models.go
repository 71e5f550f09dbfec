package checkpoint

// Checkpoint is the persisted progress of a scrape: the lowest block height of
// the configured range that has not been fully scraped yet. Rows are keyed by
// chain and deduplicated on Timestamp, so the newest write wins.
type Checkpoint struct {
	ChainID   uint64 `json:"evm_chain_id"`
	Lowest    uint64 `json:"lowest_unfinished_block"`
	Timestamp int64  `json:"timestamp"`
}
