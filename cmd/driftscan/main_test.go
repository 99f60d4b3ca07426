package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftscan/driftscan/internal/errkind"
)

func TestClassifyNilError(t *testing.T) {
	exitCode = exitPartialSuccess
	defer func() { exitCode = exitSuccess }()
	require.Equal(t, exitPartialSuccess, classify(nil))
}

func TestClassifyCancellation(t *testing.T) {
	require.Equal(t, exitCancelled, classify(context.Canceled))
	require.Equal(t, exitCancelled, classify(context.DeadlineExceeded))
	require.Equal(t, exitCancelled, classify(errkind.Transient("scan", "", context.DeadlineExceeded)))
}

func TestClassifyErrkindVariants(t *testing.T) {
	require.Equal(t, exitUserError, classify(errkind.InvalidArg("x", errors.New("bad"))))
	require.Equal(t, exitUserError, classify(errkind.NotFoundErr("x", "id", errors.New("missing"))))
	require.Equal(t, exitPartialSuccess, classify(errkind.DetectorErr("x", "file.go", nil)))
	require.Equal(t, exitInternalFault, classify(errkind.InternalErr("x", errors.New("boom"))))
}

func TestClassifyPlainError(t *testing.T) {
	require.Equal(t, exitUserError, classify(errors.New("unclassified")))
}
