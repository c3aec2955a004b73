package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		JWT:      JWTConfig{Secret: "secret"},
		Platform: PlatformConfig{BppID: "compass.bpp.course_manager"},
		Webhook:  WebhookConfig{APIKey: "hook"},
		Collaborators: CollaboratorsConfig{
			WalletURL:         "http://wallet",
			CourseManagerURL:  "http://course-manager",
			BapURL:            "http://bap",
			CredentialURL:     "http://credential",
			PassbookURL:       "http://passbook",
			UserServiceURL:    "http://user",
			RequestServiceURL: "http://request",
			Timeout:           10 * time.Second,
			RetryCount:        2,
		},
		Settlement: SettlementConfig{MaxAttempts: 5, LockTTL: 3 * time.Minute},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateListsMissingCollaborators(t *testing.T) {
	cfg := validConfig()
	cfg.Collaborators.WalletURL = ""
	cfg.Collaborators.BapURL = " "

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, "missing required configuration: collaborators.bap_url, collaborators.wallet_url", err.Error())
}

func TestCallBudgetIncludesRetries(t *testing.T) {
	c := CollaboratorsConfig{Timeout: 10 * time.Second, RetryCount: 2}
	assert.Equal(t, 34*time.Second, c.CallBudget())

	c.RetryCount = 0
	assert.Equal(t, 10*time.Second, c.CallBudget())
}

func TestValidateLockTTL(t *testing.T) {
	cases := map[string]struct {
		ttl   time.Duration
		valid bool
	}{
		"zero":          {0, false},
		"negative":      {-time.Second, false},
		"below budget":  {30 * time.Second, false},
		"exact budget":  {136 * time.Second, true},
		"default value": {3 * time.Minute, true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Settlement.LockTTL = tc.ttl
			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, "settlement.lock_ttl")
			}
		})
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
jwt:
  secret: secret
webhook:
  api_key: hook
storage:
  local_path: ` + filepath.Join(dir, "certificates") + `
collaborators:
  wallet_url: http://wallet
  course_manager_url: http://course-manager
  bap_url: http://bap
  credential_url: http://credential
  passbook_url: http://passbook
  user_service_url: http://user
  request_service_url: http://request
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, cfg.Settlement.LockTTL)
	assert.Equal(t, 10*time.Second, cfg.Collaborators.Timeout)
	assert.Equal(t, "compass.bpp.course_manager", cfg.Platform.BppID)
	assert.DirExists(t, filepath.Join(dir, "certificates"))
}

func TestLoadConfigRejectsShortLockTTL(t *testing.T) {
	dir := t.TempDir()
	yaml := `
jwt:
  secret: secret
webhook:
  api_key: hook
storage:
  local_path: ` + filepath.Join(dir, "certificates") + `
collaborators:
  wallet_url: http://wallet
  course_manager_url: http://course-manager
  bap_url: http://bap
  credential_url: http://credential
  passbook_url: http://passbook
  user_service_url: http://user
  request_service_url: http://request
settlement:
  lock_ttl: 30s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "settlement.lock_ttl")
}
