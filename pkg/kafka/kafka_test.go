package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

type reloadMsg struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func TestDecodeJSON(t *testing.T) {
	msg, err := DecodeJSON[reloadMsg]([]byte(`{"path":"book/searchindex.js","reason":"build"}`))
	require.NoError(t, err)
	assert.Equal(t, reloadMsg{Path: "book/searchindex.js", Reason: "build"}, msg)

	_, err = DecodeJSON[reloadMsg]([]byte(`{"path":`))
	assert.Error(t, err)
}

func TestConsumerOptions(t *testing.T) {
	rc := kafka.ReaderConfig{GroupID: "docsearch-group", StartOffset: kafka.LastOffset}
	WithGroupID("docsearch-host-1")(&rc)
	WithFirstOffset()(&rc)

	assert.Equal(t, "docsearch-host-1", rc.GroupID)
	assert.Equal(t, kafka.FirstOffset, rc.StartOffset)
}

var _ Publisher = (*Producer)(nil)

func TestEncode(t *testing.T) {
	msgs, err := encode([]Event{
		{Key: "metastore", Value: map[string]int{"hits": 3}},
		{Key: "", Value: reloadMsg{Path: "book/searchindex.js"}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("metastore"), msgs[0].Key)
	assert.JSONEq(t, `{"hits":3}`, string(msgs[0].Value))
	assert.Equal(t, []kafka.Header{jsonHeader}, msgs[1].Headers)

	_, err = encode([]Event{{Key: "bad", Value: make(chan int)}})
	assert.ErrorContains(t, err, `encoding event "bad"`)
}

func TestPublishBatch_Empty(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:1"}}, "search-analytics")
	defer p.Close()
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
}
