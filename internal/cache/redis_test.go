package cache

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/jason-s-yu/shootingstars/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChangePublisherRoundTrip requires a local Redis at REDIS_ADDR.
func TestChangePublisherRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := ConnectRedis(ctx, addr, 0)
	require.NoError(t, err)
	defer rdb.Close()

	channel := "shootingstars_test_" + time.Now().Format("150405.000000")
	changes, err := Subscribe(ctx, rdb, channel)
	require.NoError(t, err)

	pub := NewChangePublisher(rdb, channel, logrus.New())
	pub.Notify(ctx, store.Change{
		Collection: "pictures",
		Key:        "picture",
		Body:       json.RawMessage(`{"pictureKey":"star"}`),
		UpdatedAt:  time.UnixMilli(42),
	})

	select {
	case rec := <-changes:
		assert.Equal(t, "pictures", rec.Collection)
		assert.Equal(t, "picture", rec.Key)
		assert.Equal(t, int64(42), rec.Timestamp)
		assert.JSONEq(t, `{"pictureKey":"star"}`, string(rec.Doc))
	case <-ctx.Done():
		t.Fatal("timed out waiting for published change")
	}
}

func TestNewChangePublisherDefaultsChannel(t *testing.T) {
	p := NewChangePublisher(nil, "", logrus.New())
	assert.Equal(t, DefaultChangeChannel, p.channel)
}
