package apod_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"apodfeed/apod"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *apod.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return apod.NewClient(apod.Config{
		Host:   server.URL,
		ApiKey: "test-key",
	})
}

func TestGetRangeSendsWindowAndApiKey(t *testing.T) {
	var got *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"date":"2024-01-30","title":"Second","url":"u2","hdurl":"h2","explanation":"e2","media_type":"image"},
			{"date":"2024-01-31","title":"First","url":"u1","explanation":"e1","media_type":"video"}
		]`))
	})

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)

	entries, err := client.GetRange(context.Background(), start, end)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/planetary/apod", got.URL.Path)
	assert.Equal(t, "2024-01-01", got.URL.Query().Get("start_date"))
	assert.Equal(t, "2024-01-31", got.URL.Query().Get("end_date"))
	assert.Equal(t, "test-key", got.URL.Query().Get("api_key"))
	assert.Equal(t, apod.DefaultUserAgent, got.Header.Get("User-Agent"))

	// Provider order is kept
	require.Len(t, entries, 2)
	assert.Equal(t, "2024-01-30", entries[0].Date)
	assert.Equal(t, "h2", entries[0].HdUrl)
	assert.Equal(t, "2024-01-31", entries[1].Date)
	assert.Equal(t, "video", entries[1].MediaType)
	assert.Empty(t, entries[1].HdUrl)
}

func TestGetRangeEmptyArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	entries, err := client.GetRange(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestGetDateSingleObject(t *testing.T) {
	var date string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		date = r.URL.Query().Get("date")
		w.Write([]byte(`{"date":"2023-07-20","title":"Pic","url":"u","explanation":"e","media_type":"image","copyright":"Someone"}`))
	})

	entry, err := client.GetDate(context.Background(), time.Date(2023, 7, 20, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2023-07-20", date)
	assert.Equal(t, "Pic", entry.Title)
	assert.Equal(t, "Someone", entry.Copyright)
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
	}{
		{
			name:        "flat error",
			status:      http.StatusBadRequest,
			body:        `{"code":400,"msg":"Date must be between Jun 16, 1995 and today.","service_version":"v1"}`,
			wantCode:    "400",
			wantMessage: "Date must be between Jun 16, 1995 and today.",
		},
		{
			name:        "nested error",
			status:      http.StatusForbidden,
			body:        `{"error":{"code":"API_KEY_INVALID","message":"An invalid api_key was supplied."}}`,
			wantCode:    "API_KEY_INVALID",
			wantMessage: "An invalid api_key was supplied.",
		},
		{
			name:   "unparseable body",
			status: http.StatusInternalServerError,
			body:   `<html>oops</html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.GetRange(context.Background(), time.Now(), time.Now())
			require.Error(t, err)

			var apiErr *apod.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
		})
	}
}

func TestMalformedPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"date": 12`))
	})

	_, err := client.GetRange(context.Background(), time.Now(), time.Now())
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetRange(ctx, time.Now(), time.Now())
	assert.Error(t, err)
}
