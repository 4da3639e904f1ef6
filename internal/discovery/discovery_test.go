package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncerReachesListener(t *testing.T) {
	l := NewListener()
	require.NoError(t, l.Start(0))
	defer l.Stop()

	info := SessionInfo{Session: "s1", Host: "host", Addr: "127.0.0.1:9999", Width: 8, Height: 8, Actors: 3}
	a := NewAnnouncer(info, l.Port(), nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: l.Port()})
	a.interval = 20 * time.Millisecond
	require.NoError(t, a.Start())
	defer a.Stop()

	sessions := l.Wait(5 * time.Second)
	require.Len(t, sessions, 1)
	assert.Equal(t, info, sessions[0])

	a.SetClients(2)
	assert.Eventually(t, func() bool {
		s := l.Sessions()
		return len(s) == 1 && s[0].Clients == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestListenerPrunesStaleSessions(t *testing.T) {
	l := NewListener()
	now := time.Now()
	l.record([]byte(`{"session":"a","addr":"10.0.0.2:9999"}`), now)
	l.record([]byte(`{"session":"b","addr":"10.0.0.1:9999"}`), now.Add(3*time.Second))

	s := l.Sessions()
	require.Len(t, s, 2)
	assert.Equal(t, "10.0.0.1:9999", s[0].Addr, "sorted by address")

	l.prune(now.Add(SessionExpiry + time.Second))
	s = l.Sessions()
	require.Len(t, s, 1)
	assert.Equal(t, "b", s[0].Session)
}

func TestListenerIgnoresGarbage(t *testing.T) {
	l := NewListener()
	l.record([]byte("nope"), time.Now())
	l.record([]byte(`{"session":"x"}`), time.Now())
	assert.Empty(t, l.Sessions())
}

func TestBroadcastTargetsIncludeLoopback(t *testing.T) {
	targets := broadcastTargets(1234)
	require.GreaterOrEqual(t, len(targets), 2)
	assert.True(t, targets[0].IP.Equal(net.IPv4(127, 0, 0, 1)))
	for _, dst := range targets {
		assert.Equal(t, 1234, dst.Port)
	}
}
