//go:build linux

package supervisor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gophernest/sgopherd"
	"github.com/gophernest/sgopherd/internal/constants"
)

type nullLogger struct{}

func (nullLogger) Debug(string, ...any) {}
func (nullLogger) Info(string, ...any)  {}
func (nullLogger) Warn(string, ...any)  {}
func (nullLogger) Error(string, ...any) {}

func TestWorkerEnvCarriesResolvedConfig(t *testing.T) {
	cfg := gopherd.DefaultConfig()
	cfg.Port = 7070
	cfg.MaxClients = 42
	sv := New(cfg, nullLogger{})

	env := sv.workerEnv(3)
	require.Contains(t, env, constants.EnvRole+"="+constants.RoleWorker)
	require.Contains(t, env, constants.EnvPort+"=7070")
	require.Contains(t, env, constants.EnvMaxClients+"=42")
	require.Contains(t, env, constants.EnvWorkerIndex+"=3")
}

func TestRunRejectsExcessiveWorkerCount(t *testing.T) {
	cfg := gopherd.DefaultConfig()
	cfg.WorkerCount = MaxWorkers + 1
	sv := New(cfg, nullLogger{})

	err := sv.Run()
	require.Error(t, err)
	require.True(t, gopherd.IsCode(err, gopherd.ErrCodeSetup))
}

func TestPrepareExecBuildsNullTerminatedArrays(t *testing.T) {
	params, err := prepareExec("/proc/self/exe", []string{"/proc/self/exe"}, []string{"A=1"})
	require.NoError(t, err)
	require.NotNil(t, params.path)
	require.Len(t, params.argvp, 2)
	require.Nil(t, params.argvp[1])
	require.Len(t, params.envpp, 2)
	require.Nil(t, params.envpp[1])
}
