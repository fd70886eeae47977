package config

import "time"

// CommanderConfig enumerates the configuration spec §6 names for the
// Commander: the two topic names and the default synchronous-wait
// deadline. Loaded with stage "commander".
type CommanderConfig struct {
	CommandsTopic string
	EventsTopic   string
	SyncTimeout   time.Duration
}

// BrokerConfig enumerates broker client params (spec §6 "broker client
// params"), passed through to the logbroker adapters. Loaded with
// stage "broker".
type BrokerConfig struct {
	Addr          string
	Password      string
	DB            int
	ConsumerGroup string
	ConsumerName  string
	ReadCount     int64
	BlockFor      time.Duration
}

// IndexConfig enumerates index connection params (spec §6 "index
// connection params"), passed through to the IndexReader adapters.
// Loaded with stage "index".
type IndexConfig struct {
	Addr       string
	Password   string
	DB         int
	SetKey     string
	RecordsKey string
}
