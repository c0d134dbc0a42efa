package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewServiceRequestTimeout(t *testing.T) {
	svc := NewService("https://insight.bitpay.com/api/", 5*time.Second)
	client := svc.(*insight)
	require.Equal(t, 5*time.Second, client.requestTimeout)
	require.Equal(t, "https://insight.bitpay.com/api", client.apiURL)

	// a non-positive timeout falls back to the default
	svc = NewService("https://insight.bitpay.com/api", 0)
	require.Equal(t, defaultRequestTimeout, svc.(*insight).requestTimeout)
}
