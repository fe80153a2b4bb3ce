package activity

import (
	"context"
	"strings"
	"testing"
	"time"

	appkafka "example.com/socialapi/internal/broker"
	"example.com/socialapi/internal/metrics"
	"example.com/socialapi/internal/models"
	"example.com/socialapi/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ appkafka.Publisher = (*DirectPublisher)(nil)

func TestNotificationFor(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	n, ok := NotificationFor(NewEvent(models.EventLike, "a", "b", "p1", at))
	require.True(t, ok)
	assert.Equal(t, "liked your post", n.Verb)
	assert.Equal(t, "b", n.RecipientID)
	assert.Equal(t, "p1", n.TargetID)
	assert.Equal(t, at, n.CreatedAt)

	_, ok = NotificationFor(NewEvent(models.EventLike, "a", "a", "p1", at))
	assert.False(t, ok, "self-like must not notify")

	_, ok = NotificationFor(NewEvent("poke", "a", "b", "", at))
	assert.False(t, ok)
}

func TestDirectPublisher_StoresOnce(t *testing.T) {
	st := store.NewMock()
	p := NewDirectPublisher(NewHandler(st), nil)
	ev := NewEvent(models.EventFollow, "a", "b", "", time.Now().UTC())

	require.NoError(t, p.Publish(context.Background(), ev))
	require.NoError(t, p.Publish(context.Background(), ev))

	list, err := st.ListNotifications(context.Background(), "b", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "started following you", list[0].Verb)
}

func TestHandler_StoreFailure(t *testing.T) {
	h := NewHandler(store.NewMockFail())
	err := h.Handle(context.Background(), NewEvent(models.EventFollow, "a", "b", "", time.Now()))
	assert.Error(t, err)
}

func TestDirectPublisher_RecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)
	ctx := context.Background()

	ok := NewDirectPublisher(NewHandler(store.NewMock()), rec)
	require.NoError(t, ok.Publish(ctx, NewEvent(models.EventFollow, "a", "b", "", time.Now().UTC())))
	require.NoError(t, ok.Publish(ctx, NewEvent(models.EventLike, "a", "b", "p1", time.Now().UTC())))

	failing := NewDirectPublisher(NewHandler(store.NewMockFail()), rec)
	assert.Error(t, failing.Publish(ctx, NewEvent(models.EventFollow, "a", "b", "", time.Now().UTC())))

	expected := `
# HELP socialapi_events_processed_total Activity events turned into notifications.
# TYPE socialapi_events_processed_total counter
socialapi_events_processed_total{result="error",type="follow"} 1
socialapi_events_processed_total{result="ok",type="follow"} 1
socialapi_events_processed_total{result="ok",type="like"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "socialapi_events_processed_total"))
}
