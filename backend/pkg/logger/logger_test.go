package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_BeforeInit(t *testing.T) {
	Logger = nil
	l := Get()
	require.NotNil(t, l)
	l.Info("does not panic")
}

func TestInit_Environments(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		t.Run(env, func(t *testing.T) {
			require.NoError(t, Init(env))
			assert.NotNil(t, Logger)
			assert.NotNil(t, Named("graph"))
			Sync()
		})
	}
	Logger = nil
}
