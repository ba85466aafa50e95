package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleErrorMessage(t *testing.T) {
	err := NewUnknownField("AT123", "bogus")
	assert.Equal(t, ErrorTypeUnknownField, err.Type)
	assert.Contains(t, err.Error(), "unknown_field")
	assert.Contains(t, err.Error(), "AT123")
	assert.Contains(t, err.Error(), `"bogus"`)

	wrapped := NewIO("AT123", "write data.json", context.Canceled)
	assert.Contains(t, wrapped.Error(), "context canceled")
	assert.True(t, stderrors.Is(wrapped, context.Canceled))
}

func TestIsTypeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("element 3: %w", NewUnknownField("AT9", "colour"))
	assert.True(t, IsType(err, ErrorTypeUnknownField))
	assert.False(t, IsType(err, ErrorTypeMalformedInput))
	assert.False(t, IsType(stderrors.New("plain"), ErrorTypeIO))
}

func TestDownloadErrorsAggregate(t *testing.T) {
	agg := DownloadErrors{
		NewDownload("AT1", "http://x/1.jpg", stderrors.New("404")),
		NewDownload("AT1", "http://x/3.jpg", stderrors.New("timeout")),
	}

	var err error = agg
	assert.Contains(t, err.Error(), "2 image download(s) failed")
	assert.Equal(t, []string{"http://x/1.jpg", "http://x/3.jpg"}, agg.URLs())
	assert.True(t, IsType(err, ErrorTypeDownload))

	var ve *VehicleError
	require.True(t, stderrors.As(err, &ve))
	assert.Equal(t, "http://x/1.jpg", ve.URL)

	var back DownloadErrors
	require.True(t, stderrors.As(fmt.Errorf("save: %w", err), &back))
	assert.Len(t, back, 2)
}
