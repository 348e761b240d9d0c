package invalidation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/internal/cache"
	"github.com/happydiving/pricing-engine/pkg/model"
)

func seededCache() *cache.AppCache {
	c := cache.New(cache.DefaultConfig(), zap.NewNop())
	c.Pages.Insert("about", &model.ParsedPage{Slug: "about"})
	c.Pages.Insert("home", &model.ParsedPage{Slug: "home"})
	c.BlogPosts.Insert("reef-tips", &model.ParsedPage{Slug: "reef-tips"})
	c.BlogListings.Insert(cache.BlogListingKey("", 1), &model.BlogListing{Page: 1})
	c.ContentTypes.Insert("operations.divesite", &model.ContentType{ID: 12})
	return c
}

func TestHandler_KeyInvalidation(t *testing.T) {
	c := seededCache()
	h := NewHandler(c, zap.NewNop())

	require.NoError(t, h.HandleMessage(SourceNATS, []byte(`{"namespace":"pages","key":"about"}`)))

	_, ok := c.Pages.Get("about")
	assert.False(t, ok)
	_, ok = c.Pages.Get("home")
	assert.True(t, ok)
	assert.Zero(t, c.BlogListings.Len(), "page invalidation drops listings")
	assert.Equal(t, 1, c.ContentTypes.Len())
}

func TestHandler_NamespaceInvalidation(t *testing.T) {
	c := seededCache()
	h := NewHandler(c, zap.NewNop())

	require.NoError(t, h.HandleMessage(SourceNATS, []byte(`{"namespace":"content_types"}`)))
	assert.Zero(t, c.ContentTypes.Len())
	assert.Equal(t, 2, c.Pages.Len())
}

func TestHandler_EmptyNamespaceInvalidatesAll(t *testing.T) {
	c := seededCache()
	h := NewHandler(c, zap.NewNop())

	require.NoError(t, h.HandleMessage(SourceNATS, []byte(`{}`)))
	assert.Equal(t, model.CacheStats{}, c.Stats())
}

func TestHandler_PublishEventSlug(t *testing.T) {
	c := seededCache()
	h := NewHandler(c, zap.NewNop())

	require.NoError(t, h.HandleMessage(SourceNATS, []byte(`{"slug":"reef-tips","page_type":"blog"}`)))
	assert.Zero(t, c.BlogPosts.Len())
	assert.Zero(t, c.BlogListings.Len())
	assert.Equal(t, 2, c.Pages.Len())
}

func TestHandler_Malformed(t *testing.T) {
	c := seededCache()
	h := NewHandler(c, zap.NewNop())

	err := h.HandleMessage(SourceNATS, []byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, 2, c.Pages.Len())
}

func TestHandler_UnknownNamespace(t *testing.T) {
	h := NewHandler(seededCache(), nil)
	err := h.Apply(SourceAPI, model.InvalidationRequest{Namespace: "sessions"})
	assert.ErrorIs(t, err, cache.ErrUnknownNamespace)
}

func TestSubscriber_HandleMessage(t *testing.T) {
	c := seededCache()
	s := NewSubscriber(nil, model.EventContentPublished, NewHandler(c, zap.NewNop()), zap.NewNop())

	s.handleMessage(&nats.Msg{Subject: model.EventContentPublished, Data: []byte(`{"namespace":"pages","key":"home"}`)})
	_, ok := c.Pages.Get("home")
	assert.False(t, ok)

	assert.NotPanics(t, func() {
		s.handleMessage(&nats.Msg{Subject: model.EventContentPublished, Data: []byte(`garbage`)})
	})
	assert.NoError(t, s.Close(), "close before start is a no-op")
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	acks    []uint64
	nacks   []uint64
	requeue []bool
}

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks = append(f.nacks, tag)
	f.requeue = append(f.requeue, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acks), len(f.nacks)
}

func TestConsumer_AcksAndNacks(t *testing.T) {
	c := seededCache()
	consumer := &Consumer{
		queue:   "cms.cache.invalidate",
		handler: NewHandler(c, zap.NewNop()),
		logger:  zap.NewNop(),
		done:    make(chan struct{}),
	}
	ack := &fakeAcknowledger{}

	msgs := make(chan amqp.Delivery, 3)
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"namespace":"pages","key":"about"}`)}
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`nope`)}
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`{"namespace":"bogus"}`)}
	close(msgs)

	done := make(chan struct{})
	go func() {
		consumer.consume(context.Background(), msgs)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not drain the channel")
	}

	acks, nacks := ack.counts()
	assert.Equal(t, 1, acks)
	assert.Equal(t, 2, nacks)
	assert.Equal(t, []uint64{2, 3}, ack.nacks)
	assert.Equal(t, []bool{false, false}, ack.requeue)

	_, ok := c.Pages.Get("about")
	assert.False(t, ok)
}

func TestConsumer_StopsOnClose(t *testing.T) {
	consumer := &Consumer{handler: NewHandler(seededCache(), nil), logger: zap.NewNop(), done: make(chan struct{})}
	msgs := make(chan amqp.Delivery)

	done := make(chan struct{})
	go func() {
		consumer.consume(context.Background(), msgs)
		close(done)
	}()

	require.NoError(t, consumer.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
