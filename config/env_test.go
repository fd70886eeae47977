package config

import (
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadCommanderConfig(t *testing.T) {
	loader := Loader{Prefix: "COMMANDBROKER", lookup: envMap(map[string]string{
		"COMMANDBROKER_COMMANDER_COMMANDS_TOPIC": "commands",
		"COMMANDBROKER_COMMANDER_EVENTS_TOPIC":   "events",
		"COMMANDBROKER_COMMANDER_SYNC_TIMEOUT":   "5s",
	})}

	var cfg CommanderConfig
	if err := loader.Load("commander", &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CommandsTopic != "commands" || cfg.EventsTopic != "events" {
		t.Fatalf("unexpected topics: %+v", cfg)
	}
	if cfg.SyncTimeout != 5*time.Second {
		t.Fatalf("expected 5s, got %s", cfg.SyncTimeout)
	}
}

func TestLoadLeavesUnsetFieldsUntouched(t *testing.T) {
	loader := Loader{Prefix: "COMMANDBROKER", lookup: envMap(map[string]string{
		"COMMANDBROKER_BROKER_ADDR": "localhost:6379",
	})}

	cfg := BrokerConfig{ConsumerGroup: "preset"}
	if err := loader.Load("broker", &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "localhost:6379" {
		t.Fatalf("expected addr to be loaded, got %q", cfg.Addr)
	}
	if cfg.ConsumerGroup != "preset" {
		t.Fatalf("expected preset default to survive, got %q", cfg.ConsumerGroup)
	}
}

func TestKeysListsExpectedEnvVars(t *testing.T) {
	keys := Loader{Prefix: "COMMANDBROKER"}.Keys("index", IndexConfig{})
	want := map[string]bool{
		"COMMANDBROKER_INDEX_ADDR":        true,
		"COMMANDBROKER_INDEX_PASSWORD":    true,
		"COMMANDBROKER_INDEX_DB":          true,
		"COMMANDBROKER_INDEX_SET_KEY":     true,
		"COMMANDBROKER_INDEX_RECORDS_KEY": true,
	}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d: %v", len(want), len(keys), keys)
	}
	for _, k := range keys {
		if !want[k] {
			t.Fatalf("unexpected key %s", k)
		}
	}
}
