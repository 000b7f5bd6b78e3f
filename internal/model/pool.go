package model

// Pool is the stored identity of a simulated pair.
type Pool struct {
	ChainID    uint64 `json:"chain_id"`
	Address    string `json:"address"`
	TokenA     string `json:"token_a"`
	TokenB     string `json:"token_b"`
	Factory    string `json:"factory"`
	CreatedSeq uint64 `json:"created_seq"`
}
