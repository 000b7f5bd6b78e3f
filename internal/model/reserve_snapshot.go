package model

import "time"

// ReserveSnapshot is the pool state recorded after a replay step.
type ReserveSnapshot struct {
	ChainID          uint64
	PoolAddress      string
	Seq              uint64
	ReserveA         string
	ReserveB         string
	TotalSupply      string
	PriceCumulativeA string
	PriceCumulativeB string
	KLast            string
	LastSync         time.Time
}
