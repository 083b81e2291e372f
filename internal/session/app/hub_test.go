//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package sessionapp

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgexfoundry/app-rssi-localization/internal/localization"
	"edgexfoundry/app-rssi-localization/internal/session"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + wsRoute
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_Stream(t *testing.T) {
	app, router := makeTestApp(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn1 := dialHub(t, srv)
	defer conn1.Close()
	conn2 := dialHub(t, srv)
	defer conn2.Close()
	require.Eventually(t, func() bool { return app.hub.Len() == 2 }, 5*time.Second, time.Millisecond)

	app.hub.Publish(session.Result{
		TargetID:  "t1",
		Algorithm: localization.TWCL,
		Timestamp: 2,
		Estimate:  localization.PositionOnly{At: localization.Point{X: 1, Y: 2}},
	})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, msgType)
		assert.JSONEq(t, `{"target_id":"t1","algorithm":"TWCL","timestamp":2,"position":{"x":1,"y":2}}`, string(data))
	}

	require.NoError(t, conn1.Close())
	assert.Eventually(t, func() bool { return app.hub.Len() == 1 }, 5*time.Second, time.Millisecond)

	app.hub.Close()
	assert.Equal(t, 0, app.hub.Len())
	require.NoError(t, conn2.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn2.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestHub_DropsSlowClients(t *testing.T) {
	app, router := makeTestApp(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return app.hub.Len() == 1 }, 5*time.Second, time.Millisecond)

	// the client never reads; once its socket buffers and send queue fill up, it's dropped
	big := localization.PositionWithHeatmap{Heatmap: localization.Grid{
		Xs:     make([]float64, 10000),
		Ys:     []float64{0},
		Values: [][]float64{make([]float64, 10000)},
	}}
	assert.Eventually(t, func() bool {
		app.hub.Publish(session.Result{TargetID: "t1", Algorithm: localization.FPL, Estimate: big})
		return app.hub.Len() == 0
	}, 10*time.Second, time.Millisecond)
}

func TestHub_Publish_Unsupported(t *testing.T) {
	hub := NewHub(getTestingLogger())
	// no clients, and an estimate which can't be marshaled; must not panic
	hub.Publish(session.Result{TargetID: "t1"})
	assert.Equal(t, 0, hub.Len())
}
