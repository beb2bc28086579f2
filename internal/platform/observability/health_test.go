package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func TestServerHandler(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name     string
		pingErr  error
		path     string
		wantCode int
	}{
		{name: "healthz", path: "/healthz", wantCode: http.StatusOK},
		{name: "ready", path: "/readyz", wantCode: http.StatusOK},
		{name: "not ready", path: "/readyz", pingErr: errors.New("down"), wantCode: http.StatusServiceUnavailable},
		{name: "metrics", path: "/metrics", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(stubPinger{err: tt.pingErr}, 0, &logger)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
