package config

import (
	"time"
)

// sessionSchema is incremented when the Session layout changes
const sessionSchema uint16 = 1

// Session records the outcome of the last debugging session
type Session struct {
	Schema      uint16
	File        string
	Line        int
	Variables   []string
	Rounds      int
	Removed     []RemovedProbe
	Captures    int
	Fingerprint uint64
	Started     time.Time
	Elapsed     time.Duration
}

// RemovedProbe represents a serialize statement dropped by the correction loop
type RemovedProbe struct {
	File string
	Line int
	Text string
}
