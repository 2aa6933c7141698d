package telegram

import (
	"io/ioutil"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// AccountsConfig is the YAML file listing the gateway endpoint and the
// account sessions available to this daemon, e.g.
//
//	gateway: http://localhost:8081
//	accounts:
//	  - name: main
//	    session: 1a2b3c...
type AccountsConfig struct {
	Gateway  string    `yaml:"gateway"`
	Accounts []Account `yaml:"accounts"`
}

type Account struct {
	Name    string `yaml:"name"`
	Session string `yaml:"session"`
}

func LoadAccounts(path string) (AccountsConfig, error) {
	var config AccountsConfig
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return config, errors.Wrap(err, "reading accounts file")
	}
	if err := yaml.Unmarshal(buf, &config); err != nil {
		return config, errors.Wrap(err, "parsing accounts file")
	}
	return config, config.Validate()
}

func (c AccountsConfig) Validate() error {
	if c.Gateway == "" {
		return errors.New("accounts file is missing the gateway endpoint")
	}
	if len(c.Accounts) == 0 {
		return errors.New("accounts file lists no accounts")
	}
	for i, a := range c.Accounts {
		if a.Session == "" {
			return errors.Errorf("account %d (%s) has no session token", i, a.Name)
		}
	}
	return nil
}

// PoolConfig tunes the per-session gateway clients.
type PoolConfig struct {
	Timeout    time.Duration
	RPS, Burst int
}

// NewPoolFromConfig builds a session pool with one rate-limited
// gateway client per configured account.
func NewPoolFromConfig(accounts AccountsConfig, config PoolConfig, logger log.Logger) (*Pool, error) {
	if err := accounts.Validate(); err != nil {
		return nil, err
	}
	pool := NewPool(logger)
	for _, a := range accounts.Accounts {
		client := NewGatewayClient(ClientConfig{
			BaseURL: accounts.Gateway,
			Session: a.Session,
			Timeout: config.Timeout,
			RPS:     config.RPS,
			Burst:   config.Burst,
		})
		pool.Add(a.Name, client)
	}
	return pool, nil
}
