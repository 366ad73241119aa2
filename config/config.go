package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/fees"
	"stakepool/native/pool"
)

// Storage backends.
const (
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

type Config struct {
	DataDir string `toml:"DataDir"`
	// Scenario is an optional YAML file replayed at startup.
	Scenario  string    `toml:"Scenario"`
	Pool      Pool      `toml:"pool"`
	Roles     Roles     `toml:"roles"`
	Chain     Chain     `toml:"chain"`
	Storage   Storage   `toml:"storage"`
	Gateway   Gateway   `toml:"gateway"`
	Telemetry Telemetry `toml:"telemetry"`
}

// Pool holds the pool tunables. Amounts are decimal nanoton strings so they
// survive TOML's 64-bit integers.
type Pool struct {
	InterestRate              uint32 `toml:"InterestRate"`
	GovernanceFee             uint32 `toml:"GovernanceFee"`
	MinLoan                   string `toml:"MinLoan"`
	MaxLoan                   string `toml:"MaxLoan"`
	DisbalanceTolerance       uint32 `toml:"DisbalanceTolerance"`
	DepositFee                string `toml:"DepositFee"`
	FinalizeRoundFee          string `toml:"FinalizeRoundFee"`
	MinStorage                string `toml:"MinStorage"`
	NotificationAmount        string `toml:"NotificationAmount"`
	ServiceNotificationAmount string `toml:"ServiceNotificationAmount"`
	MintGas                   string `toml:"MintGas"`
	Optimistic                bool   `toml:"Optimistic"`
	Projector                 string `toml:"Projector"`
	LedgerSymbol              string `toml:"LedgerSymbol"`
}

// Roles are the bech32 addresses allowed to steer the pool.
type Roles struct {
	Governor        crypto.Address `toml:"Governor"`
	InterestManager crypto.Address `toml:"InterestManager"`
	Halter          crypto.Address `toml:"Halter"`
	Approver        crypto.Address `toml:"Approver"`
}

type Chain struct {
	Elections types.ElectionParams `toml:"elections"`
	// BaseFees and MasterFees are hex encoded message price records.
	BaseFees   fees.Table `toml:"BaseFees"`
	MasterFees fees.Table `toml:"MasterFees"`
}

type Storage struct {
	Backend string `toml:"Backend"`
}

type Gateway struct {
	ListenAddress      string  `toml:"ListenAddress"`
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
	// AllowedOrigins lists CORS origins; empty allows any.
	AllowedOrigins []string `toml:"AllowedOrigins"`
}

type Telemetry struct {
	ServiceName  string `toml:"ServiceName"`
	Environment  string `toml:"Environment"`
	OTLPEndpoint string `toml:"OTLPEndpoint"`
	Insecure     bool   `toml:"Insecure"`
	Traces       bool   `toml:"Traces"`
	Metrics      bool   `toml:"Metrics"`
	// SampleRatio keeps this fraction of delivery traces; zero keeps all.
	SampleRatio float64 `toml:"SampleRatio"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by the defaults, which are written back for the operator to edit.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func roleAddress(name string) crypto.Address {
	return crypto.Derive(crypto.BasePrefix, "poold-role", []byte(name))
}

// Default returns a local development configuration.
func Default() *Config {
	params := pool.DefaultParams()
	return &Config{
		DataDir: "./pool-data",
		Pool: Pool{
			InterestRate:              params.InterestRate,
			GovernanceFee:             params.GovernanceFee,
			MinLoan:                   params.MinLoan.String(),
			MaxLoan:                   params.MaxLoan.String(),
			DisbalanceTolerance:       params.DisbalanceTolerance,
			DepositFee:                params.DepositFee.String(),
			FinalizeRoundFee:          params.FinalizeRoundFee.String(),
			MinStorage:                params.MinStorage.String(),
			NotificationAmount:        params.NotificationAmount.String(),
			ServiceNotificationAmount: params.ServiceNotificationAmount.String(),
			MintGas:                   params.MintGas.String(),
			Projector:                 pool.FinalizeFeeProjector{}.Name(),
			LedgerSymbol:              "pSTAKE",
		},
		Roles: Roles{
			Governor:        roleAddress("governor"),
			InterestManager: roleAddress("interest-manager"),
			Halter:          roleAddress("halter"),
			Approver:        roleAddress("approver"),
		},
		Chain: Chain{
			Elections:  types.DefaultElectionParams(),
			BaseFees:   fees.DefaultBaseTable(),
			MasterFees: fees.DefaultMasterTable(),
		},
		Storage: Storage{Backend: BackendLevelDB},
		Gateway: Gateway{
			ListenAddress:      ":8080",
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
		},
		Telemetry: Telemetry{
			ServiceName: "poold",
			Environment: "dev",
		},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return nil, fmt.Errorf("pool.%s: empty amount", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("pool.%s: invalid amount %q", field, value)
	}
	return amount, nil
}

// PoolParams converts the [pool] section into engine parameters.
func (c *Config) PoolParams() (pool.Params, error) {
	p := pool.Params{
		InterestRate:        c.Pool.InterestRate,
		GovernanceFee:       c.Pool.GovernanceFee,
		DisbalanceTolerance: c.Pool.DisbalanceTolerance,
	}
	amounts := []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"MinLoan", c.Pool.MinLoan, &p.MinLoan},
		{"MaxLoan", c.Pool.MaxLoan, &p.MaxLoan},
		{"DepositFee", c.Pool.DepositFee, &p.DepositFee},
		{"FinalizeRoundFee", c.Pool.FinalizeRoundFee, &p.FinalizeRoundFee},
		{"MinStorage", c.Pool.MinStorage, &p.MinStorage},
		{"NotificationAmount", c.Pool.NotificationAmount, &p.NotificationAmount},
		{"ServiceNotificationAmount", c.Pool.ServiceNotificationAmount, &p.ServiceNotificationAmount},
		{"MintGas", c.Pool.MintGas, &p.MintGas},
	}
	for _, a := range amounts {
		v, err := parseAmount(a.name, a.value)
		if err != nil {
			return pool.Params{}, err
		}
		*a.dst = v
	}
	return p, nil
}

// PoolRoles returns the pool roles with ledger as the share ledger.
func (c *Config) PoolRoles(ledger crypto.Address) pool.Roles {
	return pool.Roles{
		Governor:        c.Roles.Governor,
		InterestManager: c.Roles.InterestManager,
		Halter:          c.Roles.Halter,
		Approver:        c.Roles.Approver,
		Ledger:          ledger,
	}
}

func (c *Config) FeeTables() fees.Tables {
	return fees.Tables{
		fees.SegmentBase:   c.Chain.BaseFees,
		fees.SegmentMaster: c.Chain.MasterFees,
	}
}

func (c *Config) Projector() (pool.Projector, error) {
	return pool.ProjectorByName(c.Pool.Projector)
}
