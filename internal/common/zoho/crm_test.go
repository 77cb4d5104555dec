// internal/common/zoho/crm_test.go
package zoho

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTask(t *testing.T) {
	var got map[string][]map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Tasks", r.URL.Path)
		assert.Equal(t, "Zoho-oauthtoken secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":[{"code":"SUCCESS","status":"success","details":{"id":"task-42"}}]}`))
	}))
	defer srv.Close()

	client := NewCRMClient(srv.URL, "secret", time.Second)
	id, err := client.CreateTask(context.Background(), &Task{Subject: "Call Jane", Priority: "High"})
	require.NoError(t, err)
	assert.Equal(t, "task-42", id)
	require.Len(t, got["data"], 1)
	assert.Equal(t, "Call Jane", got["data"][0]["Subject"])
	assert.Equal(t, "Not Started", got["data"][0]["Status"])
}

func TestCreateTask_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		temporary bool
		isStatus  bool
	}{
		{"server error", http.StatusBadGateway, `oops`, true, true},
		{"rate limited", http.StatusTooManyRequests, `slow down`, true, true},
		{"bad request", http.StatusBadRequest, `{"code":"INVALID_DATA"}`, false, true},
		{"zoho rejected", http.StatusOK, `{"data":[{"status":"error","message":"mandatory field missing"}]}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewCRMClient(srv.URL, "secret", time.Second).CreateTask(context.Background(), &Task{Subject: "x"})
			require.Error(t, err)

			var se *StatusError
			assert.Equal(t, tt.isStatus, errors.As(err, &se))
			if tt.isStatus {
				assert.Equal(t, tt.temporary, se.Temporary())
			}
		})
	}
}
