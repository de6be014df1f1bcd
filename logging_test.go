package ldapfetch

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogConfig(t *testing.T) {
	hook := test.NewGlobal()
	defer log.StandardLogger().ReplaceHooks(make(log.LevelHooks))

	cfg := CreateConfig()
	cfg.BindDN = "cn=reader,dc=example,dc=com"
	cfg.BindPassword = "hunter2"

	logConfig(cfg)
	assert.Empty(t, hook.AllEntries(), "nothing is logged unless Debug is set")

	cfg.Debug = true
	logConfig(cfg)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "cn=reader,dc=example,dc=com", entry.Data["BindDN"])
	assert.Equal(t, redacted, entry.Data["BindPassword"])
	line, err := entry.String()
	require.NoError(t, err)
	assert.NotContains(t, line, "hunter2")
}
