package model

// DecodeError records why a line of an event log could not be decoded.
type DecodeError struct {
	Line        int    `json:"line"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	LogIndex    uint64 `json:"log_index,omitempty"`
	Address     string `json:"address,omitempty"`
	Topic0      string `json:"topic0,omitempty"`
	Error       string `json:"error"`
}
