package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

func (c *Config) Validate() error {
	params, err := c.PoolParams()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("%w: pool: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Projector(); err != nil {
		return fmt.Errorf("%w: pool.Projector: %v", ErrInvalidConfig, err)
	}
	roles := []struct {
		name    string
		missing bool
	}{
		{"Governor", c.Roles.Governor.IsZero()},
		{"InterestManager", c.Roles.InterestManager.IsZero()},
		{"Halter", c.Roles.Halter.IsZero()},
		{"Approver", c.Roles.Approver.IsZero()},
	}
	for _, r := range roles {
		if r.missing {
			return fmt.Errorf("%w: roles.%s is required", ErrInvalidConfig, r.name)
		}
	}
	e := c.Chain.Elections
	if e.ElectedFor == 0 || e.StartBefore <= e.EndBefore || e.StartBefore > e.ElectedFor {
		return fmt.Errorf("%w: chain.elections: need ElectedFor >= StartBefore > EndBefore", ErrInvalidConfig)
	}
	if c.Chain.BaseFees.LumpPrice == 0 || c.Chain.MasterFees.LumpPrice == 0 {
		return fmt.Errorf("%w: chain fee tables must carry a lump price", ErrInvalidConfig)
	}
	switch c.Storage.Backend {
	case BackendLevelDB:
		if c.DataDir == "" {
			return fmt.Errorf("%w: DataDir is required for the leveldb backend", ErrInvalidConfig)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: storage.Backend %q (want %s or %s)", ErrInvalidConfig, c.Storage.Backend, BackendLevelDB, BackendMemory)
	}
	if c.Gateway.RateLimitPerSecond < 0 || c.Gateway.RateLimitBurst < 0 {
		return fmt.Errorf("%w: gateway rate limits must not be negative", ErrInvalidConfig)
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("%w: telemetry.SampleRatio %v is outside [0, 1]", ErrInvalidConfig, r)
	}
	return nil
}
