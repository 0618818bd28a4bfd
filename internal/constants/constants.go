package constants

import "time"

var CacheTTL = struct {
	TagLibraryIndex time.Duration
}{
	TagLibraryIndex: 30 * time.Minute,
}

var WebSocketConfig = struct {
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
}{
	MaxReconnectAttempts: 5,
	ReconnectDelay:       5 * time.Second,
}

var ScannerConfig = struct {
	DefaultConcurrency int
}{
	DefaultConcurrency: 4,
}

var InjectionDefaults = struct {
	Role  string
	Depth int
}{
	Role:  "system",
	Depth: 4,
}
