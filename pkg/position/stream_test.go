package position

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(f float64) *float64 { return &f }

func TestStreamMessage_Fix(t *testing.T) {
	tests := []struct {
		name    string
		msg     StreamMessage
		wantErr bool
		fixErr  bool
	}{
		{name: "Valid", msg: StreamMessage{Lat: fp(10.77), Lon: fp(106.7)}},
		{name: "SensorError", msg: StreamMessage{Error: "denied"}, fixErr: true},
		{name: "MissingLon", msg: StreamMessage{Lat: fp(10.77)}, wantErr: true},
		{name: "OutOfRange", msg: StreamMessage{Lat: fp(91), Lon: fp(0)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix, err := tt.msg.Fix()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.fixErr, fix.Err != nil)
		})
	}
}

func TestStreamSensor_PushOnlyWhileWatched(t *testing.T) {
	s := NewStreamSensor()
	s.Push(Fix{}) // dropped, nobody watching
	assert.False(t, s.Watching())

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Watch(ctx)
	require.NoError(t, err)
	assert.True(t, s.Watching())

	s.Push(Fix{Point: benThanh})
	got := <-ch
	assert.Equal(t, benThanh, got.Point)

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.False(t, s.Watching())
}

func TestStreamSensor_ServeConn(t *testing.T) {
	sensor := NewStreamSensor()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	done := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		done <- sensor.ServeConn(r.Context(), c)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixes, err := sensor.Watch(ctx)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "invalid frame", reply["error"])

	require.NoError(t, conn.WriteJSON(StreamMessage{Lat: fp(benThanh.Lat), Lon: fp(benThanh.Lon)}))
	select {
	case f := <-fixes:
		assert.Equal(t, benThanh, f.Point)
	case <-time.After(time.Second):
		t.Fatal("fix not delivered")
	}

	require.NoError(t, conn.WriteJSON(StreamMessage{Error: "denied"}))
	f := <-fixes
	assert.EqualError(t, f.Err, "denied")

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ServeConn did not return")
	}
}
