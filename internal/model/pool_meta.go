package model

// PoolMeta captures immutable pool metadata attached to decoded events.
type PoolMeta struct {
	TokenA  string    `json:"token_a"`
	TokenB  string    `json:"token_b"`
	Factory string    `json:"factory,omitempty"`
	Share   TokenMeta `json:"share"`
}
