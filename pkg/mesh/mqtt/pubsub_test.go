package mqtt

import (
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
)

func TestMatchTopic(t *testing.T) {
	testCases := []struct {
		topic, pattern string
		match          bool
	}{
		{"node/1", "node/1", true},
		{"node/1", "node/2", false},
		{"node/1", "node/+", true},
		{"node/1/x", "node/+", false},
		{"node", "node/+", false},
		{"node/1", "#", true},
		{"broadcast", "node/#", false},
		{"node/1/x", "node/#", true},
	}
	for _, tc := range testCases {
		t.Run(tc.topic+" "+tc.pattern, func(t *testing.T) {
			require.Equal(t, tc.match, MatchTopic(tc.topic, tc.pattern))
		})
	}
}

func TestClientOptionsFromURL(t *testing.T) {
	opts, prefix, qos, err := ClientOptionsFromURL("mqtt://user:pw@broker:1883/mesh?client-id=n1&qos=1")
	require.NoError(t, err)
	require.Equal(t, "mesh/", prefix)
	require.Equal(t, byte(1), qos)
	require.Equal(t, "user", opts.Username)
	require.Equal(t, "pw", opts.Password)
	require.Equal(t, "n1", opts.ClientID)
	require.Len(t, opts.Servers, 1)
	require.Equal(t, "tcp://broker:1883", opts.Servers[0].String())

	_, prefix, qos, err = ClientOptionsFromURL("mqtt://broker")
	require.NoError(t, err)
	require.Empty(t, prefix)
	require.Zero(t, qos)
	_, _, _, err = ClientOptionsFromURL("mqtt://broker/?qos=3")
	require.Error(t, err)
}

func TestTopics(t *testing.T) {
	require.Equal(t, "node/42", NodeTopic(42))
	addr, err := TopicAddress("node/42")
	require.NoError(t, err)
	require.Equal(t, uint32(42), addr)
	addr, err = TopicAddress(BroadcastTopic)
	require.NoError(t, err)
	require.Equal(t, BroadcastAddress, addr)
	_, err = TopicAddress("other/1")
	require.Error(t, err)
}

func TestQueueDispatch(t *testing.T) {
	q := NewQueue(paho.NewClientOptions(), "mesh/")
	var got []string
	sub := q.Sub("node/+", func(topic string, payload []byte) {
		got = append(got, topic+"="+string(payload))
	})
	exact := q.Sub(BroadcastTopic, func(topic string, payload []byte) {
		got = append(got, "b="+string(payload))
	})
	q.Dispatch("mesh/node/7", []byte("x"))
	q.Dispatch("mesh/broadcast", []byte("y"))
	q.Dispatch("other/node/7", []byte("z"))
	require.Equal(t, []string{"node/7=x", "b=y"}, got)

	again := q.Sub("node/+", func(topic string, payload []byte) {
		got = append(got, "again")
	})
	q.Dispatch("mesh/node/8", []byte("w"))
	require.Equal(t, []string{"node/7=x", "b=y", "node/8=w", "again"}, got)

	require.NoError(t, again.Close())
	q.Dispatch("mesh/node/8", []byte("w"))
	require.Len(t, got, 5)

	sub.Close()
	exact.Close()
	q.Dispatch("mesh/node/7", []byte("x"))
	require.Len(t, got, 5)
}
