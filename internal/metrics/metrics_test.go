package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBooking(t *testing.T) {
	before := testutil.ToFloat64(bookingAttemptsTotal.WithLabelValues("success"))
	RecordBooking("success", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(bookingAttemptsTotal.WithLabelValues("success")))
}

func TestNotificationCounters(t *testing.T) {
	sent := testutil.ToFloat64(notificationsSentTotal)
	failed := testutil.ToFloat64(notificationsFailedTotal.WithLabelValues("temporary"))

	RecordNotificationSent()
	RecordNotificationFailed("temporary")
	RecordNotifyRetry()

	assert.Equal(t, sent+1, testutil.ToFloat64(notificationsSentTotal))
	assert.Equal(t, failed+1, testutil.ToFloat64(notificationsFailedTotal.WithLabelValues("temporary")))
}

func TestOutboxSnapshotAndCache(t *testing.T) {
	RecordOutboxPublish("sent")
	RecordSnapshot("applied")
	RecordSoldOutHit()
	assert.GreaterOrEqual(t, testutil.ToFloat64(soldOutHitsTotal), float64(1))
}

func TestMetricsHandler(t *testing.T) {
	RecordBooking("not_found", time.Millisecond)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "webinar_booking_attempts_total")
}
