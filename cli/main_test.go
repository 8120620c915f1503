package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubRun struct {
	dir string
	err error
}

func (s *stubRun) Cleanup() error { return s.err }
func (s *stubRun) Dir() string    { return s.dir }

func TestCleanupLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	cleanup(&stubRun{dir: "/tmp/geotag-run-1", err: errors.New("device busy")}, zerolog.New(&buf))

	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"dir":"/tmp/geotag-run-1"`)
	assert.Contains(t, buf.String(), `"error":"device busy"`)
	assert.Contains(t, buf.String(), "Failed to remove run directory")
}

func TestCleanupQuietOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	cleanup(&stubRun{dir: "/tmp/geotag-run-2"}, zerolog.New(&buf))
	assert.Zero(t, buf.Len())
}

func TestOptionalFloat(t *testing.T) {
	var f optionalFloat
	assert.Nil(t, f.ptr())
	assert.Equal(t, "", f.String())

	assert.NoError(t, f.Set("-70.2568"))
	if assert.NotNil(t, f.ptr()) {
		assert.Equal(t, -70.2568, *f.ptr())
	}
	assert.Equal(t, "-70.2568", f.String())
	assert.Error(t, f.Set("north"))
}
