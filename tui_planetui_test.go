package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellCheckListed(t *testing.T) {
	sh := &shell{cfg: defaultConfig(), reg: fixtureRegistry()}

	assert.NoError(t, sh.checkListed("sda"))
	assert.ErrorContains(t, sh.checkListed("sdb"), "sdb is not a removable disk")
	assert.ErrorContains(t, sh.checkListed("sdz"), "sdz is not a removable disk")

	failing := newMemRegistry().add("sda", attrRemovable, "1", attrDeviceType, "0")
	failing.listErr = os.ErrPermission
	sh.reg = failing
	assert.ErrorIs(t, sh.checkListed("sda"), ErrRegistryUnavailable)
}

// newTestShell returns a shell whose device root holds a writable sda
// and whose prompt answers with answer, recording the questions.
func newTestShell(t *testing.T, reg Registry, answer bool) (*shell, *[]string) {
	t.Helper()
	cfg := defaultConfig()
	cfg.DevRoot = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DevRoot, "sda"), nil, 0o644))

	var questions []string
	sh := &shell{cfg: cfg, reg: reg, ask: func(q string) (bool, error) {
		questions = append(questions, q)
		return answer, nil
	}}
	return sh, &questions
}

func TestShellPrepareWriteAsks(t *testing.T) {
	sh, questions := newTestShell(t, fixtureRegistry(), true)
	want := filepath.Join(sh.cfg.DevRoot, "sda")

	device, err := sh.prepareWrite("sda", false)
	require.NoError(t, err)
	assert.Equal(t, want, device)
	assert.Equal(t, []string{"All data on " + want + " will be destroyed. Continue? [y/N] "}, *questions)
}

func TestShellPrepareWriteDeclined(t *testing.T) {
	sh, questions := newTestShell(t, fixtureRegistry(), false)

	_, err := sh.prepareWrite("sda", false)
	assert.ErrorIs(t, err, errAborted)
	assert.Len(t, *questions, 1)
}

func TestShellPrepareWriteYesSkipsQuestion(t *testing.T) {
	sh, questions := newTestShell(t, fixtureRegistry(), false)

	_, err := sh.prepareWrite("sda", true)
	require.NoError(t, err)
	assert.Empty(t, *questions)
}

func TestShellPrepareWriteDeviceGone(t *testing.T) {
	reg := fixtureRegistry()
	sh, questions := newTestShell(t, reg, true)
	reg.remove("sda")

	_, err := sh.prepareWrite("sda", false)
	assert.ErrorContains(t, err, "sda is not a removable disk")
	assert.Empty(t, *questions)
}

func TestShellPrepareWriteNoPermission(t *testing.T) {
	sh, questions := newTestShell(t, fixtureRegistry(), true)
	require.NoError(t, os.Remove(filepath.Join(sh.cfg.DevRoot, "sda")))

	_, err := sh.prepareWrite("sda", false)
	assert.ErrorContains(t, err, "no permission to write the device")
	assert.Empty(t, *questions)
}
