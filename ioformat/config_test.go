package ioformat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigCoercionLadder(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	text := `
* this is a full-line comment
# so is this

epsilon = 1.5   # inline comment stripped
kappa = 1
verbose = true
skip_plots = no
label = "my run"
fallback = none
raw = hello
`
	cfg, err := ParseConfig(strings.NewReader(text))
	require.NoError(err)

	assert.Equal(1.5, cfg.Float("epsilon", -1))
	assert.Equal(1, cfg.Int("kappa", -1))
	assert.True(cfg.Bool("verbose", false))
	assert.False(cfg.Bool("skip_plots", true))
	assert.Equal("my run", cfg.String("label", ""))

	v, ok := cfg.Get("fallback")
	require.True(ok)
	assert.Equal(KindNone, v.Kind)

	assert.Equal("hello", cfg.String("raw", ""))
}

func TestParseConfigMissingEqualsIsError(t *testing.T) {
	require := require.New(t)

	_, err := ParseConfig(strings.NewReader("not_a_key_value_line"))
	require.Error(err)
}

func TestParseConfigDefaultsWhenAbsent(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	cfg, err := ParseConfig(strings.NewReader("epsilon = 2.0\n"))
	require.NoError(err)

	assert.Equal(99.0, cfg.Float("missing", 99.0))
	assert.Equal("fallback", cfg.String("missing", "fallback"))
	assert.True(cfg.Bool("missing", true))
}
