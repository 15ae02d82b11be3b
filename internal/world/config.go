package world

import (
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"skirmish/internal/proto"
)

const (
	DefaultSeed          = "arena"
	DefaultMoveStep      = 0.1
	DefaultGravity       = 0.05
	DefaultDamage        = 25
	DefaultShotRange     = 50.0
	DefaultShotCone      = 0.95
	DefaultKillsToWin    = 5
	DefaultRespawnDelay  = 5 * time.Second
	DefaultRestartDelay  = 10 * time.Second
	DefaultSpawnRange    = 10
	DefaultSpawnHeight   = 0.6
	DefaultSpawnAttempts = 32
	MaxHealth            = 100
)

// Config tunes the arena. Zero numeric fields fall back to defaults except
// Gravity, where zero disables the settle step.
type Config struct {
	Seed           string     `json:"seed" jsonschema:"description=Seed for the spawn RNG"`
	MaxPlayers     int        `json:"maxPlayers" jsonschema:"minimum=0,maximum=16"`
	MoveStep       float32    `json:"moveStep" jsonschema:"description=Distance moved per held direction per input"`
	Gravity        float32    `json:"gravity" jsonschema:"minimum=0,description=Downward settle per tick; 0 disables"`
	Damage         int        `json:"damage"`
	ShotRange      float32    `json:"shotRange"`
	ShotCone       float32    `json:"shotCone" jsonschema:"description=Minimum cosine between aim and target direction"`
	KillsToWin     int        `json:"killsToWin"`
	RespawnDelayMS int        `json:"respawnDelayMs"`
	RestartDelayMS int        `json:"restartDelayMs"`
	SpawnRange     int        `json:"spawnRange" jsonschema:"description=Spawns use integer x and z in [-range, range]"`
	SpawnHeight    float32    `json:"spawnHeight"`
	SpawnAttempts  int        `json:"spawnAttempts"`
	Colliders      []Collider `json:"colliders" jsonschema:"description=Static boxes; an empty list removes the stock arena"`
}

// Collider is a static box of world geometry.
type Collider = Box

func (cfg Config) normalized() Config {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.MaxPlayers <= 0 || normalized.MaxPlayers > proto.MaxRoster {
		normalized.MaxPlayers = proto.MaxRoster
	}
	if normalized.MoveStep <= 0 {
		normalized.MoveStep = DefaultMoveStep
	}
	if normalized.Gravity < 0 {
		normalized.Gravity = 0
	}
	if normalized.Damage <= 0 {
		normalized.Damage = DefaultDamage
	}
	if normalized.ShotRange <= 0 {
		normalized.ShotRange = DefaultShotRange
	}
	if normalized.ShotCone <= 0 || normalized.ShotCone >= 1 {
		normalized.ShotCone = DefaultShotCone
	}
	if normalized.KillsToWin <= 0 {
		normalized.KillsToWin = DefaultKillsToWin
	}
	if normalized.RespawnDelayMS <= 0 {
		normalized.RespawnDelayMS = int(DefaultRespawnDelay / time.Millisecond)
	}
	if normalized.RestartDelayMS <= 0 {
		normalized.RestartDelayMS = int(DefaultRestartDelay / time.Millisecond)
	}
	if normalized.SpawnRange <= 0 {
		normalized.SpawnRange = DefaultSpawnRange
	}
	if normalized.SpawnHeight == 0 {
		normalized.SpawnHeight = DefaultSpawnHeight
	}
	if normalized.SpawnAttempts <= 0 {
		normalized.SpawnAttempts = DefaultSpawnAttempts
	}
	normalized.Colliders = append([]Collider(nil), cfg.Colliders...)
	return normalized
}

func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

func (cfg Config) RespawnDelay() time.Duration {
	return time.Duration(cfg.RespawnDelayMS) * time.Millisecond
}

func (cfg Config) RestartDelay() time.Duration {
	return time.Duration(cfg.RestartDelayMS) * time.Millisecond
}

// DefaultColliders is the stock arena: a floor slab and three blocks.
func DefaultColliders() []Collider {
	return []Collider{
		{Min: mgl32.Vec3{-20, -1.5, -20}, Max: mgl32.Vec3{20, -0.5, 20}},
		{Min: mgl32.Vec3{-5, -0.5, -5}, Max: mgl32.Vec3{-3, 1.5, -3}},
		{Min: mgl32.Vec3{3, -0.5, 4}, Max: mgl32.Vec3{5, 1.5, 6}},
		{Min: mgl32.Vec3{-2, -0.5, 8}, Max: mgl32.Vec3{2, 0.5, 9}},
	}
}

func DefaultConfig() Config {
	return Config{
		Seed:           DefaultSeed,
		MaxPlayers:     proto.MaxRoster,
		MoveStep:       DefaultMoveStep,
		Gravity:        DefaultGravity,
		Damage:         DefaultDamage,
		ShotRange:      DefaultShotRange,
		ShotCone:       DefaultShotCone,
		KillsToWin:     DefaultKillsToWin,
		RespawnDelayMS: int(DefaultRespawnDelay / time.Millisecond),
		RestartDelayMS: int(DefaultRestartDelay / time.Millisecond),
		SpawnRange:     DefaultSpawnRange,
		SpawnHeight:    DefaultSpawnHeight,
		SpawnAttempts:  DefaultSpawnAttempts,
		Colliders:      DefaultColliders(),
	}
}
