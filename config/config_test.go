package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stakepool/native/fees"
	"stakepool/native/pool"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Roles != cfg.Roles {
		t.Fatalf("roles did not survive a round trip: %+v vs %+v", again.Roles, cfg.Roles)
	}
	if again.Chain.BaseFees != fees.DefaultBaseTable() || again.Chain.MasterFees != fees.DefaultMasterTable() {
		t.Fatalf("fee tables did not survive a round trip")
	}
	if again.Pool != cfg.Pool || again.Storage.Backend != BackendLevelDB {
		t.Fatalf("pool section changed on reload: %+v", again.Pool)
	}
}

func TestDefaultPoolParams(t *testing.T) {
	got, err := Default().PoolParams()
	if err != nil {
		t.Fatalf("pool params: %v", err)
	}
	want := pool.DefaultParams()
	if got.InterestRate != want.InterestRate || got.GovernanceFee != want.GovernanceFee || got.DisbalanceTolerance != want.DisbalanceTolerance {
		t.Fatalf("rates differ: %+v", got)
	}
	pairs := [][2]string{
		{got.MinLoan.String(), want.MinLoan.String()},
		{got.MaxLoan.String(), want.MaxLoan.String()},
		{got.DepositFee.String(), want.DepositFee.String()},
		{got.FinalizeRoundFee.String(), want.FinalizeRoundFee.String()},
		{got.MinStorage.String(), want.MinStorage.String()},
		{got.NotificationAmount.String(), want.NotificationAmount.String()},
		{got.ServiceNotificationAmount.String(), want.ServiceNotificationAmount.String()},
		{got.MintGas.String(), want.MintGas.String()},
	}
	for _, p := range pairs {
		if p[0] != p[1] {
			t.Fatalf("amount %s, want %s", p[0], p[1])
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `DataDir = "/var/lib/poold"

[pool]
InterestRate = 2000
MaxLoan = "5_000_000_000_000"
Optimistic = true
Projector = "unrealized-interest"

[storage]
Backend = "memory"

[gateway]
ListenAddress = "127.0.0.1:9090"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	params, err := cfg.PoolParams()
	if err != nil {
		t.Fatalf("pool params: %v", err)
	}
	if params.InterestRate != 2000 || params.MaxLoan.String() != "5000000000000" {
		t.Fatalf("overrides not applied: rate %d max %s", params.InterestRate, params.MaxLoan)
	}
	if params.GovernanceFee != pool.DefaultParams().GovernanceFee {
		t.Fatalf("unset fields should keep their defaults")
	}
	projector, err := cfg.Projector()
	if err != nil || projector.Name() != "unrealized-interest" {
		t.Fatalf("projector %v %v", projector, err)
	}
	if !cfg.Pool.Optimistic || cfg.Storage.Backend != BackendMemory || cfg.Gateway.ListenAddress != "127.0.0.1:9090" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Roles.Governor.IsZero() {
		t.Fatalf("roles should default")
	}
	tables := cfg.FeeTables()
	if tables[fees.SegmentMaster] != fees.DefaultMasterTable() {
		t.Fatalf("fee tables should default")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		want     string
	}{
		{"unknown key", "Bogus = 1\n", "unknown keys"},
		{"projector", "[pool]\nProjector = \"oracle\"\n", "pool.Projector"},
		{"tolerance", "[pool]\nDisbalanceTolerance = 300\n", "pool:"},
		{"amount", "[pool]\nDepositFee = \"one\"\n", "pool.DepositFee"},
		{"inverted bounds", "[pool]\nMinLoan = \"10\"\nMaxLoan = \"1\"\n", "pool:"},
		{"backend", "[storage]\nBackend = \"postgres\"\n", "storage.Backend"},
		{"elections", "[chain.elections]\nStartBefore = 10\nEndBefore = 20\n", "chain.elections"},
		{"missing role", "[roles]\nHalter = \"\"\n", "roles.Halter"},
		{"fee table", "[chain]\nBaseFees = \"0x0102\"\n", "invalid fee table"},
		{"sample ratio", "[telemetry]\nSampleRatio = 1.5\n", "telemetry.SampleRatio"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.contents))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateWrapsSentinel(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "s3"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	cfg = Default()
	cfg.DataDir = ""
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("leveldb without a data dir must fail, got %v", err)
	}
}
