package qerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message and cause",
			err:  Wrapf("hosting.create_repo", KindTransient, cause, "cannot reach host"),
			want: "hosting.create_repo: cannot reach host: connection refused",
		},
		{
			name: "message only",
			err:  New("service.create_version", KindConflict, "version %s already exists", "v3"),
			want: "service.create_version: version v3 already exists",
		},
		{
			name: "cause only",
			err:  Wrap("git.push", KindTransient, cause),
			want: "git.push: connection refused",
		},
		{
			name: "op only",
			err:  &Error{Op: "service.delete"},
			want: "service.delete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOfWalksTheChain(t *testing.T) {
	inner := New("hosting.get_repo", KindNotFound, "no such repo")
	outer := fmt.Errorf("lookup failed: %w", inner)

	assert.Equal(t, KindNotFound, KindOf(outer))
	assert.True(t, IsKind(outer, KindNotFound))
	assert.False(t, IsKind(outer, KindTransient))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap("dvc.push", KindInternal, cause)
	assert.True(t, errors.Is(err, cause))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "conflict", KindConflict.String())
	assert.Equal(t, "internal", KindInternal.String())
	assert.Equal(t, "internal", Kind(99).String())
}
