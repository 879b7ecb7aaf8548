package push

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"menuboard/pkg/platform/sentinel"
)

// =============================================================================
// Hub Test Suite
// =============================================================================
// Justification for unit tests: the subscription lifecycle of the sync core
// depends on exact registration/removal semantics and on per-listener fault
// isolation, neither of which is observable end to end.

type HubSuite struct {
	suite.Suite
	hub *Hub
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func (s *HubSuite) SetupTest() {
	s.hub = NewHub()
}

func (s *HubSuite) TestSubscribe() {
	s.Run("dispatch reaches listeners of the kind in registration order", func() {
		var got []string
		unsubA := s.hub.Subscribe(KindItemUpserted, func(json.RawMessage) { got = append(got, "a") })
		unsubB := s.hub.Subscribe(KindItemUpserted, func(json.RawMessage) { got = append(got, "b") })
		unsubC := s.hub.Subscribe(KindItemRemoved, func(json.RawMessage) { got = append(got, "c") })
		defer unsubA()
		defer unsubB()
		defer unsubC()

		s.hub.Dispatch(Envelope{Type: KindItemUpserted, Payload: json.RawMessage(`{}`)})
		s.Equal([]string{"a", "b"}, got)
	})

	s.Run("unsubscribe removes only its registration and is idempotent", func() {
		calls := 0
		unsub1 := s.hub.Subscribe(KindExtraRemoved, func(json.RawMessage) { calls++ })
		unsub2 := s.hub.Subscribe(KindExtraRemoved, func(json.RawMessage) { calls += 10 })
		s.Equal(2, s.hub.ListenerCount(KindExtraRemoved))

		unsub1()
		unsub1()
		s.Equal(1, s.hub.ListenerCount(KindExtraRemoved))

		s.hub.Dispatch(Envelope{Type: KindExtraRemoved, Payload: json.RawMessage(`5`)})
		s.Equal(10, calls)

		unsub2()
		s.Equal(0, s.hub.ListenerCount(KindExtraRemoved))
	})

	s.Run("unsubscribe during dispatch does not affect the in-flight delivery", func() {
		var unsub func()
		calls := 0
		unsub = s.hub.Subscribe(KindExtraUpserted, func(json.RawMessage) {
			calls++
			unsub()
		})
		s.hub.Subscribe(KindExtraUpserted, func(json.RawMessage) { calls++ })

		s.hub.Dispatch(Envelope{Type: KindExtraUpserted})
		s.Equal(2, calls)
		s.Equal(1, s.hub.ListenerCount(KindExtraUpserted))
	})
}

func (s *HubSuite) TestDispatchIsolation() {
	s.Run("panicking listener does not stop later listeners", func() {
		reached := false
		s.hub.Subscribe(KindItemRemoved, func(json.RawMessage) { panic("bad listener") })
		s.hub.Subscribe(KindItemRemoved, func(json.RawMessage) { reached = true })

		s.NotPanics(func() {
			s.hub.Dispatch(Envelope{Type: KindItemRemoved, Payload: json.RawMessage(`1`)})
		})
		s.True(reached)
	})

	s.Run("malformed raw frames are dropped", func() {
		called := false
		s.hub.Subscribe(KindItemUpserted, func(json.RawMessage) { called = true })

		err := s.hub.DispatchRaw([]byte(`{not json`))
		s.ErrorIs(err, sentinel.ErrBadData)

		err = s.hub.DispatchRaw([]byte(`{"type":"orderCreated","payload":{}}`))
		s.ErrorIs(err, sentinel.ErrBadData)
		s.False(called)

		s.NoError(s.hub.DispatchRaw([]byte(`{"type":"productUpdate","payload":{"id":1}}`)))
		s.True(called)
	})
}

func (s *HubSuite) TestEnvelope() {
	s.Run("new envelope round trips through decode", func() {
		env, err := NewEnvelope(KindItemRemoved, 42)
		s.Require().NoError(err)

		data, err := json.Marshal(env)
		s.Require().NoError(err)

		decoded, err := DecodeEnvelope(data)
		s.Require().NoError(err)
		s.Equal(KindItemRemoved, decoded.Type)
		s.JSONEq(`42`, string(decoded.Payload))
	})

	s.Run("kinds are the four catalog events", func() {
		s.Equal([]Kind{"productUpdate", "productDelete", "extraUpdate", "extraDelete"}, Kinds())
		s.False(Kind("").IsValid())
	})
}
