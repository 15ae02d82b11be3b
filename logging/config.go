package logging

import "time"

const (
	SinkConsole = "console"
	SinkJSON    = "json"
	SinkRedis   = "redis"
)

type Config struct {
	EnabledSinks     []string       `json:"enabledSinks"`
	BufferSize       int            `json:"bufferSize"`
	MinimumSeverity  Severity       `json:"minimumSeverity"`
	Fields           map[string]any `json:"fields,omitempty"`
	JSON             JSONConfig     `json:"json"`
	Redis            RedisConfig    `json:"redis"`
	DropWarnInterval time.Duration  `json:"dropWarnInterval"`
}

type JSONConfig struct {
	FilePath      string        `json:"filePath"`
	FlushInterval time.Duration `json:"flushInterval"`
}

// RedisConfig points the redis sink at a pub/sub channel.
type RedisConfig struct {
	Addr    string `json:"addr"`
	Channel string `json:"channel"`
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkConsole},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FilePath:      "skirmish-events.jsonl",
			FlushInterval: 2 * time.Second,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "skirmish.events",
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
