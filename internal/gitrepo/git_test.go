package gitrepo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarry-io/quarry/internal/qerrors"
)

func TestClassify(t *testing.T) {
	exitErr := errors.New("exit status 128")

	tests := []struct {
		name   string
		stderr string
		want   qerrors.Kind
	}{
		{"dns failure", "fatal: unable to access 'https://host/': Could not resolve host: host", qerrors.KindTransient},
		{"connection refused", "fatal: unable to access: Connection refused", qerrors.KindTransient},
		{"remote hung up", "fatal: the remote end hung up unexpectedly", qerrors.KindTransient},
		{"tag collision", "fatal: tag 'v2' already exists", qerrors.KindConflict},
		{"unknown failure", "fatal: not a git repository", qerrors.KindInternal},
		{"empty stderr", "", qerrors.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("git.push", exitErr, tt.stderr)
			assert.Equal(t, tt.want, qerrors.KindOf(err))
			assert.True(t, errors.Is(err, exitErr))
		})
	}
}

func TestClassifyIncludesStderrInMessage(t *testing.T) {
	err := classify("git.clone", errors.New("exit status 128"), "fatal: repository not found")
	assert.Contains(t, err.Error(), "repository not found")
	assert.Contains(t, err.Error(), "git.clone")
}
