package offline

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchUnregistered(t *testing.T) {
	d := NewDispatcher()
	err := d.Dispatch(context.Background(), &InstallEvent{})
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestDispatchLifecycle(t *testing.T) {
	net := newFakeNetwork()
	net.serve(testOrigin+"/", 200, "text/html", "<html>root</html>", TypeBasic)
	net.serve(testOrigin+"/index.html", 200, "text/html", "<html>shell</html>", TypeBasic)

	clients := NewClientSet()
	clients.Add("tab", "")
	c, storage := newTestController(t, testConfig(t), net, WithClients(clients))
	ctx := context.Background()
	_, err := storage.Open(ctx, "portfolio-cache-v3")
	require.NoError(t, err)

	d := NewDispatcher()
	c.Register(d)

	install := &InstallEvent{}
	require.NoError(t, d.Dispatch(ctx, install))
	assert.Len(t, install.Cached, 2)

	activate := &ActivateEvent{}
	require.NoError(t, d.Dispatch(ctx, activate))
	assert.Equal(t, []string{"portfolio-cache-v3"}, activate.Deleted)
	ctrl, _ := clients.Controlled("tab")
	assert.Equal(t, "portfolio-cache-v11", ctrl)

	nav := NewFetchEvent(mustRequest(t, http.MethodGet, testOrigin+"/", ModeNavigate, "text/html"))
	require.NoError(t, d.Dispatch(ctx, nav))
	resp, src, ok := nav.Response()
	require.True(t, ok)
	assert.Equal(t, SourceCache, src)
	assert.Equal(t, "<html>root</html>", string(resp.Body))

	post := NewFetchEvent(mustRequest(t, http.MethodPost, testOrigin+"/contact", ModeSameOrigin, ""))
	require.NoError(t, d.Dispatch(ctx, post))
	_, _, ok = post.Response()
	assert.False(t, ok)
}

func TestHandlersRejectWrongEventType(t *testing.T) {
	c, _ := newTestController(t, testConfig(t), newFakeNetwork())
	d := NewDispatcher()
	c.Register(d)

	ctx := context.Background()
	for _, kind := range []EventKind{EventInstall, EventActivate, EventFetch} {
		assert.Error(t, d.Dispatch(ctx, wrongKind{kind}), kind)
	}
}

type wrongKind struct{ kind EventKind }

func (w wrongKind) Kind() EventKind { return w.kind }

func TestClientSet(t *testing.T) {
	s := NewClientSet()
	s.Add("a", "")
	s.Add("b", "portfolio-cache-v10")
	s.Add("b", "ignored")
	assert.Equal(t, 2, s.Len())

	ctrl, ok := s.Controlled("b")
	require.True(t, ok)
	assert.Equal(t, "portfolio-cache-v10", ctrl)

	require.NoError(t, s.Claim(context.Background(), "portfolio-cache-v11"))
	ctrl, _ = s.Controlled("a")
	assert.Equal(t, "portfolio-cache-v11", ctrl)

	s.Remove("a")
	_, ok = s.Controlled("a")
	assert.False(t, ok)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "activated", StateActivated.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.Equal(t, "navigation", RouteNavigation.String())
}
