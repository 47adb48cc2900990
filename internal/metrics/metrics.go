package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatapp_ws_connections",
		Help: "Number of open websocket connections",
	})

	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatapp_rooms",
		Help: "Number of non-empty rooms in the room registry",
	})

	WsEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_ws_events_total",
			Help: "Websocket events received, by event name",
		},
		[]string{"event"},
	)

	WsEventErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_ws_event_errors_total",
			Help: "Websocket events answered with an error event, by event name",
		},
		[]string{"event"},
	)

	MessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatapp_messages_total",
		Help: "Messages persisted",
	})

	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_http_requests_total",
			Help: "HTTP requests by status code",
		},
		[]string{"code"},
	)
)

func RecordEvent(event string, failed bool) {
	WsEventsTotal.WithLabelValues(event).Inc()
	if failed {
		WsEventErrorsTotal.WithLabelValues(event).Inc()
	}
}

func RecordHttpStatus(status int) {
	HttpRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}
