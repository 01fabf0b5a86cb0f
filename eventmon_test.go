// eventmon_test.go: Tests for the error code helpers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorCodeHelpers(t *testing.T) {
	notFound := errors.New(ErrCodeNotFound, "no such signal")
	wrapped := errors.Wrap(notFound, ErrCodeIOError, "lookup failed")
	joined := goerrors.Join(goerrors.New("plain"), notFound)
	nested := fmt.Errorf("dispose: %w", goerrors.Join(goerrors.New("plain"), wrapped))

	tests := []struct {
		name     string
		err      error
		code     string
		wantCode string
		has      bool
	}{
		{"nil", nil, ErrCodeNotFound, "", false},
		{"plain", goerrors.New("plain"), ErrCodeNotFound, "", false},
		{"direct", notFound, ErrCodeNotFound, ErrCodeNotFound, true},
		{"wrapped cause", wrapped, ErrCodeNotFound, ErrCodeIOError, true},
		{"wrapped outer", wrapped, ErrCodeIOError, ErrCodeIOError, true},
		{"joined", joined, ErrCodeNotFound, ErrCodeNotFound, true},
		{"joined inside fmt", nested, ErrCodeNotFound, ErrCodeIOError, true},
		{"absent code", joined, ErrCodeTargetGone, ErrCodeNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.has, HasCode(tt.err, tt.code))
			assert.Equal(t, tt.wantCode, ErrorCode(tt.err))
		})
	}
}
